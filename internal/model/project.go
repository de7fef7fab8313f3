package model

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"
)

const (
	ProjectCategoryCommercial     = "commercial"
	ProjectCategoryResidential    = "residential"
	ProjectCategoryInfrastructure = "infrastructure"
	ProjectCategoryHealthcare     = "healthcare"
	ProjectCategoryEducation      = "education"
	ProjectCategoryOther          = "other"

	ProjectStatusPlanning   = "planning"
	ProjectStatusInProgress = "in-progress"
	ProjectStatusCompleted  = "completed"
	ProjectStatusOnHold     = "on-hold"

	DefaultBudgetCurrency = "ZAR"
	DefaultSizeUnit       = "sqm"

	slugMaxLength             = 100
	shortDescriptionMaxLength = 300
	shortDescriptionCutLength = 297
	shortDescriptionEllipsis  = "..."
	budgetNotDisclosed        = "Not disclosed"
)

var (
	ErrInvalidProjectCategory = errors.New("invalid_project_category")
	ErrInvalidProjectStatus   = errors.New("invalid_project_status")
)

// ProjectCategories lists the accepted project categories.
var ProjectCategories = []string{
	ProjectCategoryCommercial,
	ProjectCategoryResidential,
	ProjectCategoryInfrastructure,
	ProjectCategoryHealthcare,
	ProjectCategoryEducation,
	ProjectCategoryOther,
}

// ProjectStatuses lists the accepted project statuses.
var ProjectStatuses = []string{ProjectStatusPlanning, ProjectStatusInProgress, ProjectStatusCompleted, ProjectStatusOnHold}

var projectStatusText = map[string]string{
	ProjectStatusPlanning:   "In Planning",
	ProjectStatusInProgress: "In Progress",
	ProjectStatusCompleted:  "Completed",
	ProjectStatusOnHold:     "On Hold",
}

var currencySymbols = map[string]string{
	"ZAR": "R",
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
}

// ProjectImage is an image reference attached to a project.
type ProjectImage struct {
	ID string `json:"id"`
	Attachment
	Caption    string    `json:"caption,omitempty"`
	IsPrimary  bool      `json:"isPrimary"`
	UploadedAt time.Time `json:"uploadedAt"`
}

type Budget struct {
	Amount   float64 `json:"amount,omitempty"`
	Currency string  `gorm:"size:3" json:"currency,omitempty"`
}

type ProjectSize struct {
	Value float64 `json:"value,omitempty"`
	Unit  string  `gorm:"size:16" json:"unit,omitempty"`
}

type Client struct {
	Name    string `gorm:"size:200" json:"name,omitempty"`
	Website string `gorm:"size:500" json:"website,omitempty"`
	Logo    string `gorm:"size:500" json:"logo,omitempty"`
}

// Project is a portfolio entry.
type Project struct {
	ID               string                      `gorm:"primaryKey;size:36" json:"id"`
	Title            string                      `gorm:"not null;size:200" json:"title"`
	Slug             string                      `gorm:"size:100;index" json:"slug"`
	Description      string                      `gorm:"not null;size:2000" json:"description"`
	ShortDescription string                      `gorm:"size:300" json:"shortDescription"`
	Category         string                      `gorm:"not null;size:32;index:idx_projects_category_status" json:"category"`
	Location         string                      `gorm:"not null;size:100" json:"location"`
	Status           string                      `gorm:"not null;size:16;index:idx_projects_category_status" json:"status"`
	Featured         bool                        `gorm:"index" json:"featured"`
	Images           []ProjectImage              `gorm:"serializer:json" json:"images"`
	StartDate        *time.Time                  `json:"startDate,omitempty"`
	CompletionDate   *time.Time                  `gorm:"index" json:"completionDate,omitempty"`
	Budget           Budget                      `gorm:"embedded;embeddedPrefix:budget_" json:"budget"`
	Size             ProjectSize                 `gorm:"embedded;embeddedPrefix:size_" json:"size"`
	Client           Client                      `gorm:"embedded;embeddedPrefix:client_" json:"client"`
	Tags             datatypes.JSONSlice[string] `json:"tags"`
	Views            int64                       `gorm:"not null;default:0" json:"views"`
	CreatedBy        string                      `gorm:"size:36" json:"createdBy"`
	UpdatedBy        string                      `gorm:"size:36" json:"updatedBy,omitempty"`
	CreatedAt        time.Time                   `gorm:"index" json:"createdAt"`
	UpdatedAt        time.Time                   `json:"updatedAt"`
}

// SetTitle assigns the title and recomputes the slug when the title changed.
func (project *Project) SetTitle(title string) {
	trimmed := strings.TrimSpace(title)
	if trimmed == project.Title && project.Slug != "" {
		return
	}
	project.Title = trimmed
	project.Slug = Slugify(trimmed)
}

// SetDescription assigns the description and fills the short description when it is absent.
func (project *Project) SetDescription(description string) {
	project.Description = strings.TrimSpace(description)
	if strings.TrimSpace(project.ShortDescription) == "" {
		project.ShortDescription = ShortDescription(project.Description)
	}
}

// ApplyDefaults fills the default currency, unit and collections.
func (project *Project) ApplyDefaults() {
	if project.Status == "" {
		project.Status = ProjectStatusPlanning
	}
	if project.Budget.Currency == "" {
		project.Budget.Currency = DefaultBudgetCurrency
	}
	if project.Size.Unit == "" {
		project.Size.Unit = DefaultSizeUnit
	}
	if project.Images == nil {
		project.Images = []ProjectImage{}
	}
	if project.Tags == nil {
		project.Tags = datatypes.JSONSlice[string]{}
	}
}

// AppendImages adds images after the existing ones. The first image of a project becomes primary.
func (project *Project) AppendImages(images []ProjectImage) {
	hasPrimary := project.PrimaryImageIndex() >= 0
	for _, image := range images {
		if image.IsPrimary && hasPrimary {
			image.IsPrimary = false
		}
		if image.IsPrimary {
			hasPrimary = true
		}
		project.Images = append(project.Images, image)
	}
	if !hasPrimary && len(project.Images) > 0 {
		project.Images[0].IsPrimary = true
	}
}

// RemoveImage removes the image with the given id and reports whether it was present.
func (project *Project) RemoveImage(imageID string) (ProjectImage, bool) {
	for index, image := range project.Images {
		if image.ID != imageID {
			continue
		}
		project.Images = append(project.Images[:index:index], project.Images[index+1:]...)
		if image.IsPrimary && len(project.Images) > 0 {
			project.Images[0].IsPrimary = true
		}
		return image, true
	}
	return ProjectImage{}, false
}

// SetPrimaryImage marks one image primary and clears every other flag.
func (project *Project) SetPrimaryImage(imageID string) bool {
	found := false
	for index := range project.Images {
		if project.Images[index].ID == imageID {
			found = true
		}
	}
	if !found {
		return false
	}
	for index := range project.Images {
		project.Images[index].IsPrimary = project.Images[index].ID == imageID
	}
	return true
}

// PrimaryImageIndex returns the index of the primary image or -1.
func (project *Project) PrimaryImageIndex() int {
	for index, image := range project.Images {
		if image.IsPrimary {
			return index
		}
	}
	return -1
}

// StatusText is the display label for the project status.
func (project Project) StatusText() string {
	if text, ok := projectStatusText[project.Status]; ok {
		return text
	}
	return project.Status
}

// FormattedBudget renders the budget as "R 1 500 000" or "Not disclosed".
func (project Project) FormattedBudget() string {
	if project.Budget.Amount <= 0 {
		return budgetNotDisclosed
	}
	currency := project.Budget.Currency
	if currency == "" {
		currency = DefaultBudgetCurrency
	}
	symbol, ok := currencySymbols[strings.ToUpper(currency)]
	if !ok {
		symbol = strings.ToUpper(currency)
	}
	return symbol + " " + groupThousands(int64(math.Round(project.Budget.Amount)))
}

// FormattedSize renders the size as "12 500 sqm".
func (project Project) FormattedSize() string {
	if project.Size.Value <= 0 {
		return ""
	}
	unit := project.Size.Unit
	if unit == "" {
		unit = DefaultSizeUnit
	}
	return groupThousands(int64(math.Round(project.Size.Value))) + " " + unit
}

// Duration renders the span between start and completion as "8m" or "1y 3m".
func (project Project) Duration() string {
	if project.StartDate == nil || project.CompletionDate == nil {
		return ""
	}
	elapsed := project.CompletionDate.Sub(*project.StartDate)
	days := int(math.Ceil(elapsed.Hours() / 24))
	months := int(math.Ceil(float64(days) / 30))
	if months >= 12 {
		years := months / 12
		remainder := months % 12
		if remainder > 0 {
			return fmt.Sprintf("%dy %dm", years, remainder)
		}
		return fmt.Sprintf("%dy", years)
	}
	return fmt.Sprintf("%dm", months)
}

var (
	slugDisallowedExpression = regexp.MustCompile(`[^a-z0-9 -]`)
	slugWhitespaceExpression = regexp.MustCompile(`\s+`)
	slugHyphenRunExpression  = regexp.MustCompile(`-+`)
)

// Slugify derives the URL identifier of a title.
func Slugify(title string) string {
	slug := strings.ToLower(title)
	slug = slugDisallowedExpression.ReplaceAllString(slug, "")
	slug = slugWhitespaceExpression.ReplaceAllString(slug, "-")
	slug = slugHyphenRunExpression.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > slugMaxLength {
		slug = strings.TrimRight(slug[:slugMaxLength], "-")
	}
	return slug
}

// ShortDescription keeps descriptions up to 300 characters and cuts longer ones to 297 plus an ellipsis.
func ShortDescription(description string) string {
	runes := []rune(strings.TrimSpace(description))
	if len(runes) <= shortDescriptionMaxLength {
		return string(runes)
	}
	return strings.TrimSpace(string(runes[:shortDescriptionCutLength])) + shortDescriptionEllipsis
}

// NormalizeTags trims, drops empties and removes duplicates while keeping order.
func NormalizeTags(tags []string) datatypes.JSONSlice[string] {
	seen := make(map[string]struct{}, len(tags))
	normalized := datatypes.JSONSlice[string]{}
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		normalized = append(normalized, trimmed)
	}
	return normalized
}

// SplitTags splits a comma separated tag list.
func SplitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

// IsProjectCategory reports whether value names a project category.
func IsProjectCategory(value string) bool {
	return containsString(ProjectCategories, value)
}

// IsProjectStatus reports whether value names a project status.
func IsProjectStatus(value string) bool {
	return containsString(ProjectStatuses, value)
}

func groupThousands(value int64) string {
	negative := value < 0
	if negative {
		value = -value
	}
	digits := strconv.FormatInt(value, 10)
	var builder strings.Builder
	leading := len(digits) % 3
	if leading > 0 {
		builder.WriteString(digits[:leading])
	}
	for index := leading; index < len(digits); index += 3 {
		if builder.Len() > 0 {
			builder.WriteByte(' ')
		}
		builder.WriteString(digits[index : index+3])
	}
	if negative {
		return "-" + builder.String()
	}
	return builder.String()
}
