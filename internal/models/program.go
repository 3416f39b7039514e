package models

// CourseCategory classifies how a course sits inside a major's program.
type CourseCategory string

const (
	CategoryRequired CourseCategory = "required"
	CategoryElective CourseCategory = "elective"
)

// ProgramCourse links a course to a major's program and carries the number of
// seats the program leaves open to students from other majors.
type ProgramCourse struct {
	ID              string         `db:"id" json:"id"`
	Major           string         `db:"major" json:"major"`
	CourseID        string         `db:"course_id" json:"course_id"`
	Category        CourseCategory `db:"category" json:"category"`
	CrossMajorQuota int            `db:"cross_major_quota" json:"cross_major_quota"`
}
