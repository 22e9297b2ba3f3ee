// Package portal holds the versioned DOM contract with the education portal:
// addresses, CSS selectors and the rendering conventions the crawler relies on.
//
// The contract is tied to one portal UI version. When the portal is
// redesigned, update the selectors here and bump ContractVersion.
package portal

// ContractVersion identifies the portal UI the selectors were written against.
const ContractVersion = "2021.03-eduhub"

// Addresses.
const (
	Address         = "https://portal.azure.com/"
	OverviewAddress = "https://portal.azure.com/#blade/Microsoft_Azure_Education/EducationMenuBlade/overview"
	CoursesAddress  = "https://portal.azure.com/#blade/Microsoft_Azure_Education/EducationMenuBlade/classrooms"
)

// Rendering conventions.
const (
	// Placeholder is shown in a grid cell until its value has loaded.
	Placeholder = "--"

	// ExpiryLayout is the portal's subscription expiry date format ("Mar 4, 2022").
	ExpiryLayout = "Jan 2, 2006"

	// ExpiryOutputLayout is how expiry dates are reported.
	ExpiryOutputLayout = "2006-01-02"

	// HandoutListDepth is the number of open blades when the handout list of
	// a lab is showing: menu -> course -> lab -> handouts.
	// Portal-version specific; revalidate against the live portal on upgrade.
	HandoutListDepth = 4

	// HandoutCells is the minimum number of cells in a handout grid row.
	HandoutCells = 6

	// UsageFileName is the name the portal gives the downloaded usage report.
	UsageFileName = "azure-usage.csv"
)

// Selectors is the set of CSS selectors that make up the DOM contract.
type Selectors struct {
	// Login
	EmailInput    string
	PasswordInput string
	SubmitButton  string
	UsernameError string
	PasswordError string
	AwaitApproval string

	// Blades
	BladeTitle string

	// Course list
	CourseRow string
	GridCell  string

	// Course overview
	CourseTitle string
	LabGrid     string
	GridLink    string

	// Lab
	MoreHandouts string

	// Handout list
	HandoutGrid string
	HandoutRow  string

	// Handout detail
	SubscriptionName   string
	SubscriptionID     string
	SubscriptionStatus string
	UserEmail          string

	// Overview
	UsageDownload string
}

// DefaultSelectors returns the selectors for ContractVersion.
func DefaultSelectors() Selectors {
	return Selectors{
		EmailInput:    "input[type='email']",
		PasswordInput: "input[name='passwd']",
		SubmitButton:  "input[type='submit']",
		UsernameError: "#usernameError",
		PasswordError: "#passwordError",
		AwaitApproval: "#idDiv_SAOTCAS_Title",

		BladeTitle: ".fxs-blade-title-content",

		CourseRow: `[class="fxs-portal-hover fxs-portal-focus azc-grid-row"]`,
		GridCell:  ".azc-grid-cellContent",

		CourseTitle: ".ext-classroom-overview-class-name-title",
		LabGrid:     ".ext-classroom-overview-assignment-grid",
		GridLink:    ".ext-grid-clickable-link",

		MoreHandouts: ".ext-assignment-detail-more-handout-link",

		HandoutGrid: ".ext-classroster-grid",
		HandoutRow:  ".azc-grid-row",

		SubscriptionName:   ".ext-classroom-handout-edit-subscription-name",
		SubscriptionID:     ".ext-classroom-handout-edit-subscription-id",
		SubscriptionStatus: ".ext-classroom-handout-edit-subscription-status-data",
		UserEmail:          ".ext-classroom-handout-edit-user-email",

		UsageDownload: ".ext-education-overview-download-usage-link",
	}
}
