package engine

import (
	"time"

	"github.com/google/uuid"

	"tariff/internal/models"
)

// matchFeeDefinitions selects the definitions applicable to a request,
// preserving the creation order the source returned them in. Sub-type and
// method match when set on both sides and equal, or when unset on either
// side.
func matchFeeDefinitions(defs []*models.FeeDefinition, req models.CalculationRequest, regionID *uuid.UUID, now time.Time) []*models.FeeDefinition {
	matched := make([]*models.FeeDefinition, 0, len(defs))
	for _, d := range defs {
		if !d.IsActive || d.FeeType != req.FeeType {
			continue
		}
		if !eitherUnsetOrEqual(d.FeeSubType, req.FeeSubType) {
			continue
		}
		if !eitherUnsetOrEqual(d.FeeMethod, req.FeeMethod) {
			continue
		}
		if !regionMatches(d.RegionID, regionID) {
			continue
		}
		if !d.AppliesToCountry(req.CountryCode) {
			continue
		}
		if !d.IsEffectiveAt(now) {
			continue
		}
		matched = append(matched, d)
	}
	return matched
}

// matchDiscountRules selects the discount rules applicable to a request, in
// the order received. Scoping fields on a rule are filters: an unset field
// matches everything, a set field must equal the request's value.
func matchDiscountRules(rules []*models.DiscountRule, req models.CalculationRequest, regionID *uuid.UUID, now time.Time) []*models.DiscountRule {
	matched := make([]*models.DiscountRule, 0, len(rules))
	for _, r := range rules {
		if !r.IsActive {
			continue
		}
		if r.AppliesToFeeType != nil && *r.AppliesToFeeType != req.FeeType {
			continue
		}
		if !ruleScopeMatches(r.AppliesToSubType, req.FeeSubType) {
			continue
		}
		if !ruleScopeMatches(r.AppliesToMethod, req.FeeMethod) {
			continue
		}
		if r.AppliesToAccountType != nil && *r.AppliesToAccountType != req.AccountType {
			continue
		}
		if !regionMatches(r.RegionID, regionID) {
			continue
		}
		if !r.AppliesToCountry(req.CountryCode) {
			continue
		}
		if !r.IsWithinWindow(now) {
			continue
		}
		if !r.AppliesToAmount(req.BaseAmount) {
			continue
		}
		if !r.HasUsageHeadroom() {
			continue
		}
		matched = append(matched, r)
	}
	return matched
}

// eitherUnsetOrEqual reports whether two optional fields are compatible: an
// unset value on either side matches everything.
func eitherUnsetOrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return true
	}
	return *a == *b
}

// ruleScopeMatches reports whether a rule's scoping filter admits the
// request's value. Only an unset rule field is a wildcard; a set filter
// requires the request to carry an equal value.
func ruleScopeMatches(filter, value *string) bool {
	if filter == nil {
		return true
	}
	return value != nil && *value == *filter
}

// regionMatches reports whether a rule's region scope admits the resolved
// region. Rules without a region apply globally.
func regionMatches(ruleRegion, resolved *uuid.UUID) bool {
	if ruleRegion == nil {
		return true
	}
	return resolved != nil && *ruleRegion == *resolved
}
