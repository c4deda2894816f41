package model

// Permission represents a string code for a specific teacher action.
type Permission string

const (
	// PermissionQuizViewReports allows viewing the quiz overview and regrade listings.
	PermissionQuizViewReports Permission = "quiz:view_reports"

	// PermissionQuizRegrade allows starting regrade batches and following their progress.
	PermissionQuizRegrade Permission = "quiz:regrade"

	// PermissionQuizManage allows force-finishing open attempts.
	PermissionQuizManage Permission = "quiz:manage"
)

// AllPermissions is a slice of all available permissions.
var AllPermissions = []Permission{
	PermissionQuizViewReports,
	PermissionQuizRegrade,
	PermissionQuizManage,
}
