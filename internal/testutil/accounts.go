package testutil

import "github.com/roach88/courseswap/internal/ir"

// Account derives the account id of a test handle such as "alice".
func Account(handle string) ir.AccountID {
	return ir.AccountIDFromHandle(handle)
}

// Course derives the course id of a course name.
func Course(name string) ir.CourseID {
	return ir.CourseIDFromName(name)
}
