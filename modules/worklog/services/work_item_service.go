package services

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jacksonlee411/worklog/modules/worklog/domain/ports"
	"github.com/jacksonlee411/worklog/modules/worklog/domain/types"
	"github.com/jacksonlee411/worklog/pkg/asof"
	"github.com/jacksonlee411/worklog/pkg/httperr"
)

const (
	errWorkItemInvalidArgument = "WORK_ITEM_INVALID_ARGUMENT"
	errWorkItemTitleRequired   = "WORK_ITEM_TITLE_REQUIRED"
	errWorkItemTitleTooLong    = "WORK_ITEM_TITLE_TOO_LONG"
	errWorkItemTypeInvalid     = "WORK_ITEM_TYPE_INVALID"
	errWorkItemDateInvalid     = "WORK_ITEM_DATE_INVALID"
	errWorkItemDuration        = "WORK_ITEM_DURATION_INVALID"
	errWorkItemNoPrimaryOrg    = "WORK_ITEM_NO_PRIMARY_ORG"
	errWorkItemNotFound        = "WORK_ITEM_NOT_FOUND"
	errRangeInvalid            = "DATE_RANGE_INVALID"

	MaxTitleLength = 20
	MaxTags        = 20
)

// PrimaryOrgLookup finds the org a user belongs to on a given day.
type PrimaryOrgLookup interface {
	PrimaryOrgID(ctx context.Context, userID int64, asOfDate string) (int64, bool, error)
}

type AddWorkItemRequest struct {
	WorkDate        string
	Title           string
	Type            string
	DurationMinutes *int
	Tags            []string
	Detail          *string
}

type WorkItemService struct {
	store ports.WorkItemStore
	orgs  PrimaryOrgLookup
	now   func() time.Time
}

func NewWorkItemService(store ports.WorkItemStore, orgs PrimaryOrgLookup) WorkItemService {
	return WorkItemService{store: store, orgs: orgs, now: time.Now}
}

// AddWorkItem validates req and files it under the creator's primary org as
// of today.
func (s WorkItemService) AddWorkItem(ctx context.Context, creatorID int64, req AddWorkItemRequest) (types.WorkItem, error) {
	if creatorID <= 0 {
		return types.WorkItem{}, httperr.NewBadRequest(errWorkItemInvalidArgument)
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return types.WorkItem{}, httperr.NewBadRequest(errWorkItemTitleRequired)
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return types.WorkItem{}, httperr.NewBadRequest(errWorkItemTitleTooLong)
	}
	itemType := strings.TrimSpace(req.Type)
	if itemType == "" {
		itemType = types.WorkItemTypeDone
	}
	if !slices.Contains(types.WorkItemTypes, itemType) {
		return types.WorkItem{}, httperr.NewBadRequest(errWorkItemTypeInvalid)
	}
	if _, err := time.Parse(asof.Layout, req.WorkDate); err != nil {
		return types.WorkItem{}, httperr.NewBadRequest(errWorkItemDateInvalid)
	}
	if req.DurationMinutes != nil && *req.DurationMinutes < 0 {
		return types.WorkItem{}, httperr.NewBadRequest(errWorkItemDuration)
	}

	orgID, ok, err := s.orgs.PrimaryOrgID(ctx, creatorID, asof.Format(s.now()))
	if err != nil {
		return types.WorkItem{}, err
	}
	if !ok {
		return types.WorkItem{}, httperr.NewBadRequest(errWorkItemNoPrimaryOrg)
	}

	return s.store.AddWorkItem(ctx, types.WorkItem{
		CreatorID:       creatorID,
		OrgID:           orgID,
		WorkDate:        req.WorkDate,
		Title:           title,
		Type:            itemType,
		DurationMinutes: req.DurationMinutes,
		Tags:            normalizeTags(req.Tags),
		Detail:          req.Detail,
	})
}

func (s WorkItemService) RemoveWorkItem(ctx context.Context, userID int64, id int64) error {
	if userID <= 0 || id <= 0 {
		return httperr.NewBadRequest(errWorkItemInvalidArgument)
	}
	removed, err := s.store.RemoveWorkItem(ctx, userID, id)
	if err != nil {
		return err
	}
	if !removed {
		return httperr.NewNotFound(errWorkItemNotFound)
	}
	return nil
}

// ListUserWorkItems returns userID's items dated within [from, to], ordered
// by (workDate, id).
func (s WorkItemService) ListUserWorkItems(ctx context.Context, userID int64, from, to string) ([]types.WorkItem, error) {
	items, err := s.store.ListUserWorkItems(ctx, userID)
	if err != nil {
		return nil, err
	}
	items = slices.DeleteFunc(items, func(w types.WorkItem) bool { return w.WorkDate < from || w.WorkDate > to })
	slices.SortFunc(items, compareWorkItems)
	return items, nil
}

// ReplaceUserWorkItems overwrites userID's shard and keeps the global id
// counter ahead of every id written.
func (s WorkItemService) ReplaceUserWorkItems(ctx context.Context, userID int64, items []types.WorkItem) error {
	if err := s.store.ReplaceUserWorkItems(ctx, userID, items); err != nil {
		return err
	}
	var maxID int64
	for _, it := range items {
		maxID = max(maxID, it.ID)
	}
	if maxID == 0 {
		return nil
	}
	return s.store.RaiseLastID(ctx, maxID)
}

func (s WorkItemService) ShardUserIDs(ctx context.Context) ([]int64, error) {
	return s.store.ShardUserIDs(ctx)
}

func (s WorkItemService) DeleteShard(ctx context.Context, userID int64) error {
	return s.store.DeleteShard(ctx, userID)
}

// ParseRange resolves a report range either from an ISO week ("2024W23") or
// from explicit from/to days. week wins when both are given.
func ParseRange(week, from, to string) (string, string, error) {
	if strings.TrimSpace(week) != "" {
		f, t, err := asof.ISOWeekRange(week)
		if err != nil {
			return "", "", httperr.NewBadRequest(errRangeInvalid)
		}
		return f, t, nil
	}
	f, errFrom := time.Parse(asof.Layout, from)
	t, errTo := time.Parse(asof.Layout, to)
	if errFrom != nil || errTo != nil || f.After(t) {
		return "", "", httperr.NewBadRequest(errRangeInvalid)
	}
	return from, to, nil
}

func normalizeTags(raw []string) []string {
	tags := make([]string, 0, min(len(raw), MaxTags))
	for _, t := range raw {
		if len(tags) == MaxTags {
			break
		}
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func compareWorkItems(a, b types.WorkItem) int {
	return cmp.Or(cmp.Compare(a.WorkDate, b.WorkDate), cmp.Compare(a.ID, b.ID))
}
