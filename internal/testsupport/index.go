package testsupport

import (
	"sessionimport/internal/index"
)

// Rec builds an index record; kv lists extra leaf fields as key, value pairs.
// subject_alias defaults to the subject.
func Rec(subject, experiment string, session int, montage string, kv ...string) index.Record {
	fields := map[string]string{"subject_alias": subject, "montage": montage}
	for i := 0; i+1 < len(kv); i += 2 {
		fields[kv[i]] = kv[i+1]
	}
	return index.Record{
		Subject:    subject,
		Experiment: experiment,
		Session:    session,
		Montage:    montage,
		Fields:     fields,
	}
}

// NewIndex stamps protocol onto records and builds an in-memory index.
func NewIndex(protocol string, records ...index.Record) *index.Index {
	stamped := make([]index.Record, len(records))
	for i, rec := range records {
		rec.Protocol = protocol
		stamped[i] = rec
	}
	return index.New(stamped)
}
