// Package index reads the hierarchical protocol → subject → experiment →
// session index that describes what data the repository holds.
//
// Reader is the read-only query surface the automator depends on: enumerate
// children at any level, narrow the view with criteria, and look up scalar
// leaf attributes such as subject_alias or original_session. Index is the
// in-memory implementation, loaded from the JSON document the repository
// maintains (or an equivalent YAML file).
package index
