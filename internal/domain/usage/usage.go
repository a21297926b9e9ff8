// Package usage describes daily request usage against the quotas.
package usage

import "github.com/kailas-cloud/carscore/internal/domain/usage/budget"

// Period is the aggregation granularity.
type Period string

// PeriodDay is the only quota period.
const PeriodDay Period = "day"

// Report is the usage of one day, service-wide and for one identity.
type Report struct {
	period      Period
	periodStart int64
	periodEnd   int64
	identity    string
	global      budget.Budget
	own         budget.Budget
}

// NewReport creates a usage report. start and end are unix millis.
func NewReport(start, end int64, identity string, global, own budget.Budget) Report {
	return Report{
		period:      PeriodDay,
		periodStart: start,
		periodEnd:   end,
		identity:    identity,
		global:      global,
		own:         own,
	}
}

// Period returns the aggregation granularity.
func (r *Report) Period() Period { return r.period }

// PeriodStart returns the period start timestamp (unix millis).
func (r *Report) PeriodStart() int64 { return r.periodStart }

// PeriodEnd returns the period end timestamp (unix millis).
func (r *Report) PeriodEnd() int64 { return r.periodEnd }

// Identity returns the identity the personal budget belongs to.
func (r *Report) Identity() string { return r.identity }

// Global returns the service-wide budget.
func (r *Report) Global() budget.Budget { return r.global }

// Own returns the identity's budget.
func (r *Report) Own() budget.Budget { return r.own }
