package pricing

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tymon3568/anthill-pricing/internal/domain/shared"
)

// PriceListSelector produces the ordered candidate price lists for a
// request: customer-specific assignments first (ascending assignment
// priority), then the customer's group assignments, then the tenant
// default list for the list type. An empty result is not an error; the
// calculator falls back to the raw base price.
type PriceListSelector struct {
	lists     PriceListRepository
	customers CustomerContextProvider
}

// NewPriceListSelector creates a new PriceListSelector
func NewPriceListSelector(lists PriceListRepository, customers CustomerContextProvider) *PriceListSelector {
	return &PriceListSelector{lists: lists, customers: customers}
}

// Items loads the items of one candidate list for matching
func (s *PriceListSelector) Items(ctx context.Context, listID uuid.UUID) ([]PriceListItem, error) {
	return s.lists.FindItems(ctx, listID)
}

// SelectCandidates returns active, date-valid price lists in resolution order
func (s *PriceListSelector) SelectCandidates(ctx context.Context, tenantID uuid.UUID, customerID *uuid.UUID, listType ListType, at time.Time) ([]PriceList, error) {
	var ordered []PriceList
	seen := make(map[uuid.UUID]bool)

	appendLists := func(lists []PriceList, order []uuid.UUID) {
		byID := make(map[uuid.UUID]*PriceList, len(lists))
		for i := range lists {
			byID[lists[i].ID] = &lists[i]
		}
		for _, id := range order {
			list, ok := byID[id]
			if !ok || seen[id] {
				continue
			}
			if list.ListType != listType || !list.IsValidOn(at) {
				continue
			}
			seen[id] = true
			ordered = append(ordered, *list)
		}
	}

	if customerID != nil {
		cc, err := s.customers.GetCustomerContext(ctx, *customerID)
		if err != nil {
			return nil, err
		}

		for _, assignments := range [][]CustomerPriceListAssignment{cc.Assignments, cc.GroupAssignments} {
			order := assignmentOrder(assignments, at)
			if len(order) == 0 {
				continue
			}
			lists, err := s.lists.FindByIDs(ctx, tenantID, order)
			if err != nil {
				return nil, err
			}
			appendLists(lists, order)
		}
	}

	// A missing default is normal; the candidate slice is just shorter.
	def, err := s.lists.FindDefault(ctx, tenantID, listType)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
	} else if !seen[def.ID] && def.IsValidOn(at) {
		ordered = append(ordered, *def)
	}

	return ordered, nil
}

// assignmentOrder filters assignments to those valid at the request date
// and returns their price list IDs by ascending priority (stable).
func assignmentOrder(assignments []CustomerPriceListAssignment, at time.Time) []uuid.UUID {
	valid := make([]CustomerPriceListAssignment, 0, len(assignments))
	for _, a := range assignments {
		if a.IsValidOn(at) {
			valid = append(valid, a)
		}
	}
	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].Priority < valid[j].Priority
	})

	ids := make([]uuid.UUID, 0, len(valid))
	for _, a := range valid {
		ids = append(ids, a.PriceListID)
	}
	return ids
}
