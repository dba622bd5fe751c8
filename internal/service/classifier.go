package service

import (
	"strings"

	"github.com/noah-isme/sma-advisor-api/internal/models"
)

var domainKeywords = map[models.DataDomain][]string{
	models.DomainEnrollment: {"student", "enrol", "enroll", "admission", "class strength", "roster", "pupil"},
	models.DomainAttendance: {"attendance", "present", "absent", "late", "turnout"},
	models.DomainFees:       {"fee", "fees", "collection", "payment", "outstanding", "due", "ledger", "reconcil"},
	models.DomainStaff:      {"staff", "salary", "salaries", "payroll", "teacher", "employee", "headcount"},
}

// ClassifyDomains maps a free-text question onto the record domains it
// touches. A question matching nothing is answered against every domain, so
// there is always a verified basis to answer from.
func ClassifyDomains(message string) []models.DataDomain {
	lower := strings.ToLower(message)
	var domains []models.DataDomain
	for _, domain := range []models.DataDomain{models.DomainEnrollment, models.DomainAttendance, models.DomainFees, models.DomainStaff} {
		for _, keyword := range domainKeywords[domain] {
			if strings.Contains(lower, keyword) {
				domains = append(domains, domain)
				break
			}
		}
	}
	if len(domains) == 0 {
		domains = []models.DataDomain{models.DomainEnrollment, models.DomainAttendance, models.DomainFees, models.DomainStaff}
	}
	return domains
}
