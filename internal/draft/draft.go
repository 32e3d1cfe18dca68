package draft

import (
	"context"
	"errors"
	"sync"

	"coursecast-backend/internal/models"
	"coursecast-backend/internal/remote"
)

var (
	// ErrEditNotAllowed means the remote service flagged the item as locked
	// for editing. The capability comes from the service, not from UI state.
	ErrEditNotAllowed = errors.New("content is locked for editing")

	// ErrEditInFlight means a previous edit's re-fetch is still outstanding.
	// Edits are serialized; callers retry after the current one settles.
	ErrEditInFlight = errors.New("another edit is still in progress")

	ErrPartNotFound      = errors.New("part not found")
	ErrInvalidVideoIndex = errors.New("video link index out of range")
)

// remoteEditor is the slice of the remote contract the draft needs.
type remoteEditor interface {
	GetPreview(ctx context.Context, contentID string) (*models.ContentItem, error)
	UpdatePart(ctx context.Context, contentID, partNumber string, update *remote.PartUpdate) error
}

// Draft holds the authoritative local view of one content item. Every
// mutation is sent to the remote service and then the full preview is
// re-fetched; server-derived fields (readiness, edit capability) are never
// guessed locally. A failed mutation leaves the prior local state untouched.
type Draft struct {
	svc remoteEditor

	mu           sync.Mutex
	item         *models.ContentItem
	editInFlight bool
}

func New(svc remoteEditor, item *models.ContentItem) *Draft {
	return &Draft{svc: svc, item: item}
}

// Item returns the current local snapshot.
func (d *Draft) Item() *models.ContentItem {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.item
}

// Refresh replaces the local view with the remote preview.
func (d *Draft) Refresh(ctx context.Context) error {
	d.mu.Lock()
	contentID := d.item.ContentID
	d.mu.Unlock()

	fresh, err := d.svc.GetPreview(ctx, contentID)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.item = fresh
	d.mu.Unlock()
	return nil
}

// ApplyEdit sends a partial update for one part, then re-fetches the full
// preview so the local view matches server-side derived fields.
func (d *Draft) ApplyEdit(ctx context.Context, partNumber string, update *remote.PartUpdate) error {
	d.mu.Lock()
	if !d.item.CanEdit {
		d.mu.Unlock()
		return ErrEditNotAllowed
	}
	if d.item.Part(partNumber) == nil {
		d.mu.Unlock()
		return ErrPartNotFound
	}
	if d.editInFlight {
		d.mu.Unlock()
		return ErrEditInFlight
	}
	d.editInFlight = true
	contentID := d.item.ContentID
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.editInFlight = false
		d.mu.Unlock()
	}()

	if err := d.svc.UpdatePart(ctx, contentID, partNumber, update); err != nil {
		return err
	}

	fresh, err := d.svc.GetPreview(ctx, contentID)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.item = fresh
	d.mu.Unlock()
	return nil
}

// RemoveVideoLink rebuilds the part's video list without the given index and
// submits it through the same update-then-refetch contract.
func (d *Draft) RemoveVideoLink(ctx context.Context, partNumber string, index int) error {
	d.mu.Lock()
	part := d.item.Part(partNumber)
	if part == nil {
		d.mu.Unlock()
		return ErrPartNotFound
	}
	if index < 0 || index >= len(part.VideoLinks) {
		d.mu.Unlock()
		return ErrInvalidVideoIndex
	}

	links := make([]models.VideoLink, 0, len(part.VideoLinks)-1)
	links = append(links, part.VideoLinks[:index]...)
	links = append(links, part.VideoLinks[index+1:]...)
	d.mu.Unlock()

	return d.ApplyEdit(ctx, partNumber, &remote.PartUpdate{VideoLinks: &links})
}
