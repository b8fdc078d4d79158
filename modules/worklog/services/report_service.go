package services

import (
	"context"
	"slices"
	"time"

	iamtypes "github.com/jacksonlee411/worklog/modules/iam/domain/types"
	"github.com/jacksonlee411/worklog/modules/visibility"
	"github.com/jacksonlee411/worklog/modules/worklog/domain/types"
	"github.com/jacksonlee411/worklog/pkg/asof"
	"github.com/jacksonlee411/worklog/pkg/httperr"
	"github.com/jacksonlee411/worklog/pkg/paging"
)

const (
	errReportRangeTooLarge = "REPORT_RANGE_TOO_LARGE"

	DefaultWorkItemPageLimit = 100
	MaxWorkItemPageLimit     = 500
	// MaxMissingReportDays bounds the per-user date enumeration.
	MaxMissingReportDays = 366
)

type VisibleUserResolver interface {
	ResolveVisibleUsers(ctx context.Context, viewerID int64, scope visibility.Scope, asOfDate string) ([]int64, error)
}

type UserDirectory interface {
	UsersByIDs(ctx context.Context, ids []int64) ([]iamtypes.User, error)
}

type ListVisibleRequest struct {
	Scope  visibility.Scope
	From   string
	To     string
	Limit  int
	Offset int
	Filter string
}

// ReportService answers questions across every user a viewer can see.
// Visibility is always resolved as of today; the date range only selects
// work items.
type ReportService struct {
	items    WorkItemService
	resolver VisibleUserResolver
	users    UserDirectory
	filter   *WorkItemFilter
	now      func() time.Time
}

func NewReportService(items WorkItemService, resolver VisibleUserResolver, users UserDirectory, filter *WorkItemFilter) ReportService {
	if filter == nil {
		filter = NewWorkItemFilter()
	}
	return ReportService{items: items, resolver: resolver, users: users, filter: filter, now: time.Now}
}

func (s ReportService) visibleUsers(ctx context.Context, viewerID int64, scope visibility.Scope) ([]int64, map[int64]iamtypes.User, error) {
	ids, err := s.resolver.ResolveVisibleUsers(ctx, viewerID, scope, asof.Format(s.now()))
	if err != nil {
		return nil, nil, err
	}
	users, err := s.users.UsersByIDs(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	byID := make(map[int64]iamtypes.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return ids, byID, nil
}

func creatorName(users map[int64]iamtypes.User, id int64) *string {
	u, ok := users[id]
	if !ok {
		return nil
	}
	name := u.Name
	return &name
}

// MissingReport lists, for every active visible user, the days in [from, to]
// on which they logged nothing. Users with no gaps are omitted.
func (s ReportService) MissingReport(ctx context.Context, viewerID int64, scope visibility.Scope, from, to string) (types.MissingReport, error) {
	if _, _, err := ParseRange("", from, to); err != nil {
		return types.MissingReport{}, err
	}
	days, err := asof.EnumerateDays(from, to)
	if err != nil {
		return types.MissingReport{}, err
	}
	if len(days) > MaxMissingReportDays {
		return types.MissingReport{}, httperr.NewBadRequest(errReportRangeTooLarge)
	}
	ids, users, err := s.visibleUsers(ctx, viewerID, scope)
	if err != nil {
		return types.MissingReport{}, err
	}

	report := types.MissingReport{From: from, To: to, Missing: []types.MissingEntry{}}
	for _, id := range ids {
		u, ok := users[id]
		if !ok {
			continue
		}
		report.TotalVisible++
		if !u.Active {
			continue
		}
		report.TotalActiveVisible++
		items, err := s.items.ListUserWorkItems(ctx, id, from, to)
		if err != nil {
			return types.MissingReport{}, err
		}
		present := make(map[string]struct{}, len(items))
		for _, it := range items {
			present[it.WorkDate] = struct{}{}
		}
		var missing []string
		for _, d := range days {
			if _, ok := present[d]; !ok {
				missing = append(missing, d)
			}
		}
		if len(missing) > 0 {
			report.Missing = append(report.Missing, types.MissingEntry{UserID: id, Name: u.Name, MissingDates: missing})
		}
	}
	return report, nil
}

// WeeklyAggregate groups visible items by (creator, day). Every visible user
// gets a details entry, even one with no items.
func (s ReportService) WeeklyAggregate(ctx context.Context, viewerID int64, scope visibility.Scope, from, to string) (types.WeeklyAggregate, error) {
	if _, _, err := ParseRange("", from, to); err != nil {
		return types.WeeklyAggregate{}, err
	}
	ids, users, err := s.visibleUsers(ctx, viewerID, scope)
	if err != nil {
		return types.WeeklyAggregate{}, err
	}
	out := types.WeeklyAggregate{From: from, To: to, Rows: []types.WeeklyRow{}, Details: []types.WeeklyDetail{}}
	for _, id := range ids {
		items, err := s.items.ListUserWorkItems(ctx, id, from, to)
		if err != nil {
			return types.WeeklyAggregate{}, err
		}
		name := creatorName(users, id)
		detail := types.WeeklyDetail{CreatorID: id, CreatorName: name, Items: make([]types.WeeklyDetailItem, 0, len(items))}
		for _, it := range items {
			n := len(out.Rows)
			if n == 0 || out.Rows[n-1].CreatorID != id || out.Rows[n-1].WorkDate != it.WorkDate {
				out.Rows = append(out.Rows, types.WeeklyRow{CreatorID: id, CreatorName: name, WorkDate: it.WorkDate})
				n++
			}
			row := &out.Rows[n-1]
			row.ItemCount++
			if it.DurationMinutes != nil {
				row.TotalMinutes += *it.DurationMinutes
			}
			row.TypeCounts.Add(it.Type)

			detail.Items = append(detail.Items, types.WeeklyDetailItem{
				ID:              it.ID,
				WorkDate:        it.WorkDate,
				Title:           it.Title,
				Type:            it.Type,
				DurationMinutes: it.DurationMinutes,
			})
		}
		out.Details = append(out.Details, detail)
	}
	return out, nil
}

// ListVisibleWorkItems pages through every visible item in [from, to],
// ordered by (workDate, id), after applying the optional CEL filter.
func (s ReportService) ListVisibleWorkItems(ctx context.Context, viewerID int64, req ListVisibleRequest) (types.WorkItemPage, error) {
	if _, _, err := ParseRange("", req.From, req.To); err != nil {
		return types.WorkItemPage{}, err
	}
	match, err := s.filter.Compile(req.Filter)
	if err != nil {
		return types.WorkItemPage{}, err
	}
	ids, users, err := s.visibleUsers(ctx, viewerID, req.Scope)
	if err != nil {
		return types.WorkItemPage{}, err
	}
	var all []types.VisibleWorkItem
	for _, id := range ids {
		items, err := s.items.ListUserWorkItems(ctx, id, req.From, req.To)
		if err != nil {
			return types.WorkItemPage{}, err
		}
		name := creatorName(users, id)
		for _, it := range items {
			v := types.VisibleWorkItem{WorkItem: it, CreatorName: name}
			if match(v) {
				all = append(all, v)
			}
		}
	}
	slices.SortFunc(all, func(a, b types.VisibleWorkItem) int { return compareWorkItems(a.WorkItem, b.WorkItem) })

	limit := paging.Limit(req.Limit, DefaultWorkItemPageLimit, MaxWorkItemPageLimit)
	offset := max(req.Offset, 0)
	return types.WorkItemPage{Items: paging.Slice(all, limit, offset), Total: len(all), Limit: limit, Offset: offset}, nil
}
