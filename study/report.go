package study

import "context"

// ReportGenerator turns a finished session into a natural-language recap
// for the student. Implementations live outside this package (the hosted
// completion API); the session core depends only on this contract and on
// nothing about the response beyond a string or an error.
type ReportGenerator interface {
	GenerateReport(ctx context.Context, records []PerformanceRecord, setTitles []string, gradeLevel string) (string, error)
}
