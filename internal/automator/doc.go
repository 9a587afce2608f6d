// Package automator discovers pending import work for a protocol and runs it.
//
// Population walks the protocol index in three phases (montages, existing
// event sessions, next future sessions), building one importer handle per
// candidate unit and retaining only the handles with work to do or errors to
// report. RunAllImports then runs every retained handle; Describe renders a
// report sorted so failures and pending work surface consistently.
package automator
