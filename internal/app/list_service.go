package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"listwise/internal/affinity"
	"listwise/internal/model"
	"listwise/internal/repository"
	"listwise/internal/stem"
)

const archivedNameLayout = "Jan 2, 2006 3:04:05 PM"

type ListService struct {
	lists      *repository.ListRepository
	affinity   *AffinityService
	normalizer stem.Normalizer
	timeZone   string
	now        func() time.Time
	log        *zap.Logger
}

type ListInput struct {
	UserID string
	Name   string
	Items  []string
}

type PastListsInput struct {
	UserID string
	// Name narrows the result to one category; when nothing matches, all lists are
	// returned instead.
	Name  string
	From  time.Time
	To    time.Time
	Limit int
}

func NewListService(
	lists *repository.ListRepository,
	affinitySvc *AffinityService,
	normalizer stem.Normalizer,
	timeZone string,
	log *zap.Logger,
) *ListService {
	return &ListService{
		lists:      lists,
		affinity:   affinitySvc,
		normalizer: normalizer,
		timeZone:   timeZone,
		now:        time.Now,
		log:        log.Named("lists"),
	}
}

// Category maps a list name to the key lists and affinity records are grouped by.
func (s *ListService) Category(name string) string {
	return s.normalizer.Normalize(name)
}

// CreateList archives the active list of the same category, installs a new one
// and, when it has items, records a new-list event. Nothing is changed when none
// of the items has a key.
func (s *ListService) CreateList(ctx context.Context, input ListInput) (*model.ListRecord, error) {
	name := strings.TrimSpace(input.Name)
	category := s.Category(name)
	if !validUserID(input.UserID) || category == "" {
		return nil, ErrInvalidInput
	}
	items := cleanItems(input.Items)
	if !s.keyed(items) {
		return nil, ErrInvalidInput
	}

	previous, err := s.lists.FindActive(ctx, input.UserID, category)
	if err != nil {
		return nil, err
	}
	if previous != nil {
		if previous.Name, err = s.archiveName(ctx, previous); err != nil {
			return nil, err
		}
	}

	list := &model.ListRecord{
		UserID:    input.UserID,
		Category:  category,
		Name:      name,
		Items:     items,
		CreatedAt: s.now(),
	}
	if err := s.lists.Replace(ctx, previous, list); err != nil {
		return nil, err
	}
	if previous != nil {
		s.log.Info("list archived",
			zap.String("user_id", input.UserID),
			zap.String("category", category),
			zap.String("archived_as", previous.Name))
	}

	if len(items) > 0 {
		if _, err := s.affinity.Record(ctx, RecordInput{
			UserID:   input.UserID,
			Category: category,
			Items:    items,
			Kind:     affinity.EventNewList,
		}); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// AppendToList adds items to the active list of the category. found is false when
// no list was active and one was created instead.
//
// A list created empty was never recorded as a new list, so its first append is
// deliberately re-tagged as a new-list event and ticks the category.
func (s *ListService) AppendToList(ctx context.Context, input ListInput) (list *model.ListRecord, found bool, err error) {
	category := s.Category(input.Name)
	if !validUserID(input.UserID) || category == "" {
		return nil, false, ErrInvalidInput
	}

	active, err := s.lists.FindActive(ctx, input.UserID, category)
	if err != nil {
		return nil, false, err
	}
	if active == nil {
		list, err := s.CreateList(ctx, input)
		return list, false, err
	}

	items := cleanItems(input.Items)
	if len(items) == 0 {
		return active, true, nil
	}
	if !s.keyed(items) {
		return nil, true, ErrInvalidInput
	}
	kind := affinity.EventAppend
	if len(active.Items) == 0 {
		kind = affinity.EventNewList
	}

	active.Items = append(active.Items, items...)
	if err := s.lists.UpdateItems(ctx, active); err != nil {
		return nil, true, err
	}
	if _, err := s.affinity.Record(ctx, RecordInput{
		UserID:   input.UserID,
		Category: category,
		Items:    items,
		Kind:     kind,
	}); err != nil {
		return nil, true, err
	}
	return active, true, nil
}

// PastLists returns the user's lists, newest first.
func (s *ListService) PastLists(ctx context.Context, input PastListsInput) ([]model.ListRecord, error) {
	if !validUserID(input.UserID) || input.Limit < 0 {
		return nil, ErrInvalidInput
	}
	if !input.From.IsZero() && !input.To.IsZero() && input.To.Before(input.From) {
		return nil, ErrInvalidInput
	}

	q := repository.ListQuery{
		UserID: input.UserID,
		From:   input.From,
		To:     input.To,
		Limit:  input.Limit,
	}
	if name := strings.TrimSpace(input.Name); name != "" {
		q.Category = s.Category(name)
		lists, err := s.lists.Query(ctx, q)
		if err != nil || len(lists) > 0 {
			return lists, err
		}
		q.Category = ""
	}
	return s.lists.Query(ctx, q)
}

// FindByName looks a list up by exact name, so archived lists are reachable by
// the name they were archived under.
func (s *ListService) FindByName(ctx context.Context, userID, name string) (*model.ListRecord, error) {
	name = strings.TrimSpace(name)
	if !validUserID(userID) || name == "" {
		return nil, ErrInvalidInput
	}
	list, err := s.lists.FindByName(ctx, userID, name)
	if err != nil {
		return nil, err
	}
	if list == nil {
		return nil, ErrListNotFound
	}
	return list, nil
}

// ActiveItems returns the items on the active list of the category, nil when
// there is none.
func (s *ListService) ActiveItems(ctx context.Context, userID, category string) ([]string, error) {
	list, err := s.lists.FindActive(ctx, userID, category)
	if err != nil || list == nil {
		return nil, err
	}
	return list.Items, nil
}

// Reset deletes every list and all aggregated history of the user.
func (s *ListService) Reset(ctx context.Context, userID string) error {
	if !validUserID(userID) {
		return ErrInvalidInput
	}
	if err := s.lists.DeleteByUserID(ctx, userID); err != nil {
		return err
	}
	if err := s.affinity.Forget(ctx, userID); err != nil {
		return err
	}
	s.log.Info("user history reset", zap.String("user_id", userID))
	return nil
}

// archiveName picks the name a replaced list is kept under. Two lists created in
// the same second fall back to the millisecond form, then to a counter.
func (s *ListService) archiveName(ctx context.Context, previous *model.ListRecord) (string, error) {
	candidates := []string{
		ArchivedName(previous.Name, previous.CreatedAt, s.timeZone),
		fmt.Sprintf("%s (%d)", previous.Name, previous.CreatedAt.UnixMilli()),
	}
	for _, name := range candidates {
		taken, err := s.lists.FindByName(ctx, previous.UserID, name)
		if err != nil {
			return "", err
		}
		if taken == nil {
			return name, nil
		}
	}
	for n := 2; ; n++ {
		name := fmt.Sprintf("%s (%d-%d)", previous.Name, previous.CreatedAt.UnixMilli(), n)
		taken, err := s.lists.FindByName(ctx, previous.UserID, name)
		if err != nil {
			return "", err
		}
		if taken == nil {
			return name, nil
		}
	}
}

// keyed reports whether a non-empty item set has at least one aggregation key.
func (s *ListService) keyed(items []string) bool {
	return len(items) == 0 || len(stem.NormalizeAll(s.normalizer, items)) > 0
}

// ArchivedName renames a replaced list after its creation time. An unknown time
// zone or a zero time falls back to the creation time in epoch milliseconds.
func ArchivedName(name string, createdAt time.Time, timeZone string) string {
	loc, err := time.LoadLocation(timeZone)
	if err != nil || createdAt.IsZero() {
		return fmt.Sprintf("%s (%d)", name, createdAt.UnixMilli())
	}
	return fmt.Sprintf("%s (%s)", name, createdAt.In(loc).Format(archivedNameLayout))
}

func cleanItems(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
