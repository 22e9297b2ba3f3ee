// Package model defines the records produced by a crawl.
package model

import (
	"encoding/json"
	"strings"
	"time"
)

// CourseRecord is one row of the course-list panel.
type CourseRecord struct {
	Name           string `json:"name" yaml:"name"`
	AssignedCredit string `json:"assigned_credit" yaml:"assigned_credit"`
	Consumed       string `json:"consumed" yaml:"consumed"`
	Students       string `json:"students" yaml:"students"`
	ProjectGroups  string `json:"project_groups" yaml:"project_groups"`
}

// Header returns the column names of a CourseRecord.
func (CourseRecord) Header() []string {
	return []string{"Name", "Assigned credit", "Consumed", "Students", "Project groups"}
}

// Values returns the row cells in Header order.
func (r CourseRecord) Values() []string {
	return []string{r.Name, r.AssignedCredit, r.Consumed, r.Students, r.ProjectGroups}
}

// Subscription is the detail read from a handout's subscription panel.
type Subscription struct {
	Name       string
	ID         string
	Status     string
	ExpiryDate string // YYYY-MM-DD, empty when the portal text could not be parsed
	Users      []string
}

// HandoutRecord is a handout of a lab together with its subscription detail.
type HandoutRecord struct {
	CourseName             string    `json:"course_name" yaml:"course_name"`
	LabName                string    `json:"lab_name" yaml:"lab_name"`
	HandoutName            string    `json:"handout_name" yaml:"handout_name"`
	HandoutBudget          string    `json:"handout_budget" yaml:"handout_budget"`
	HandoutConsumed        string    `json:"handout_consumed" yaml:"handout_consumed"`
	HandoutStatus          string    `json:"handout_status" yaml:"handout_status"`
	SubscriptionName       string    `json:"subscription_name" yaml:"subscription_name"`
	SubscriptionID         string    `json:"subscription_id" yaml:"subscription_id"`
	SubscriptionStatus     string    `json:"subscription_status" yaml:"subscription_status"`
	SubscriptionExpiryDate string    `json:"subscription_expiry_date" yaml:"subscription_expiry_date"`
	SubscriptionUsers      []string  `json:"subscription_users" yaml:"subscription_users"`
	CrawlTimeUTC           time.Time `json:"crawl_time_utc" yaml:"crawl_time_utc"`
}

// Header returns the column names of a HandoutRecord.
func (HandoutRecord) Header() []string {
	return []string{
		"Course name", "Lab name", "Handout name", "Handout budget", "Handout consumed",
		"Handout status", "Subscription name", "Subscription id", "Subscription status",
		"Subscription expiry date", "Subscription users", "Crawl time utc",
	}
}

// Values returns the row cells in Header order.
func (r HandoutRecord) Values() []string {
	return []string{
		r.CourseName, r.LabName, r.HandoutName, r.HandoutBudget, r.HandoutConsumed,
		r.HandoutStatus, r.SubscriptionName, r.SubscriptionID, r.SubscriptionStatus,
		r.SubscriptionExpiryDate, strings.Join(r.SubscriptionUsers, ", "),
		r.CrawlTimeUTC.Format(time.RFC3339),
	}
}

// NavigationContext is the current position in the portal hierarchy. It
// drives navigation and stamps extracted records with their provenance.
type NavigationContext struct {
	Course  string
	Lab     string
	Handout string
}

// String renders the context as "course -> lab -> handout".
func (n NavigationContext) String() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{n.Course, n.Lab, n.Handout} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " -> ")
}

// WithLab returns a copy of n positioned at lab.
func (n NavigationContext) WithLab(lab string) NavigationContext {
	n.Lab = lab
	n.Handout = ""
	return n
}

// WithHandout returns a copy of n positioned at handout.
func (n NavigationContext) WithHandout(handout string) NavigationContext {
	n.Handout = handout
	return n
}

// Filter restricts a crawl to a course, lab or handout. Empty fields match everything.
type Filter struct {
	Course  string `json:"course,omitempty" validate:"required_with=Lab Handout"`
	Lab     string `json:"lab,omitempty"`
	Handout string `json:"handout,omitempty"`
}

// UsageRecord is one row of the downloaded usage report.
type UsageRecord struct {
	Fields []string
	Cells  []string
}

// Header returns the report's column names.
func (r UsageRecord) Header() []string {
	return r.Fields
}

// Values returns the row cells in Header order.
func (r UsageRecord) Values() []string {
	return r.Cells
}

// MarshalYAML renders the record as a field -> value mapping.
func (r UsageRecord) MarshalYAML() (any, error) {
	return r.asMap(), nil
}

// MarshalJSON renders the record as a JSON object keyed by field name.
func (r UsageRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.asMap())
}

func (r UsageRecord) asMap() map[string]string {
	m := make(map[string]string, len(r.Fields))
	for i, f := range r.Fields {
		if i < len(r.Cells) {
			m[f] = r.Cells[i]
		} else {
			m[f] = ""
		}
	}
	return m
}
