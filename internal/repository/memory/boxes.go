package memory

import (
	"context"
	"sort"

	"boxrental-backend/internal/domain"
)

type boxRepository struct {
	s session
}

func (r *boxRepository) Create(ctx context.Context, box *domain.Box) error {
	return r.s.write(func(d *state) error {
		for _, b := range d.boxes {
			if b.Barcode == box.Barcode {
				return domain.InvalidInput("barcode %s is already registered", box.Barcode)
			}
		}
		d.nextBoxID++
		box.ID = d.nextBoxID
		now := r.s.now()
		if box.CreatedAt.IsZero() {
			box.CreatedAt = now
		}
		box.UpdatedAt = now
		d.boxes[box.ID] = *box
		return nil
	})
}

func (r *boxRepository) GetByID(ctx context.Context, id int64) (*domain.Box, error) {
	var (
		box domain.Box
		ok  bool
	)
	r.s.read(func(d *state) { box, ok = d.boxes[id] })
	if !ok {
		return nil, notFound("box", id)
	}
	return &box, nil
}

func (r *boxRepository) GetByIDs(ctx context.Context, ids []int64) ([]domain.Box, error) {
	var out []domain.Box
	var missing int64
	r.s.read(func(d *state) {
		for _, id := range ids {
			b, ok := d.boxes[id]
			if !ok {
				missing = id
				return
			}
			out = append(out, b)
		}
	})
	if missing != 0 {
		return nil, notFound("box", missing)
	}
	return out, nil
}

func (r *boxRepository) GetByBarcode(ctx context.Context, barcode string) (*domain.Box, error) {
	var found *domain.Box
	r.s.read(func(d *state) {
		for _, b := range d.boxes {
			if b.Barcode == barcode {
				b := b
				found = &b
				return
			}
		}
	})
	if found == nil {
		return nil, notFound("box", barcode)
	}
	return found, nil
}

func (r *boxRepository) Update(ctx context.Context, box *domain.Box) error {
	return r.s.write(func(d *state) error {
		if _, ok := d.boxes[box.ID]; !ok {
			return notFound("box", box.ID)
		}
		box.UpdatedAt = r.s.now()
		d.boxes[box.ID] = *box
		return nil
	})
}

func (r *boxRepository) ListByStatus(ctx context.Context, statuses []domain.BoxStatus) ([]domain.Box, error) {
	want := make(map[domain.BoxStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	var out []domain.Box
	r.s.read(func(d *state) {
		for _, b := range d.boxes {
			if len(want) == 0 || want[b.Status] {
				out = append(out, b)
			}
		}
	})
	sortOldestFirst(out)
	return out, nil
}

// LockSize is a no-op: Within already admits one unit of work at a time.
func (r *boxRepository) LockSize(ctx context.Context, size domain.BoxSize) error {
	return ctx.Err()
}

func (r *boxRepository) CountInService(ctx context.Context, size domain.BoxSize) (int32, error) {
	var n int32
	r.s.read(func(d *state) {
		for _, b := range d.boxes {
			if b.Size == size && b.Status.InService() {
				n++
			}
		}
	})
	return n, nil
}

func (r *boxRepository) ListInServiceForUpdate(ctx context.Context, size domain.BoxSize) ([]domain.Box, error) {
	var out []domain.Box
	r.s.read(func(d *state) {
		for _, b := range d.boxes {
			if b.Size == size && b.Status.InService() {
				out = append(out, b)
			}
		}
	})
	sortOldestFirst(out)
	return out, nil
}

func (r *boxRepository) SetStatus(ctx context.Context, ids []int64, status domain.BoxStatus) error {
	return r.s.write(func(d *state) error {
		for _, id := range ids {
			if _, ok := d.boxes[id]; !ok {
				return notFound("box", id)
			}
		}
		now := r.s.now()
		for _, id := range ids {
			b := d.boxes[id]
			b.Status = status
			b.UpdatedAt = now
			d.boxes[id] = b
		}
		return nil
	})
}

func sortOldestFirst(boxes []domain.Box) {
	sort.Slice(boxes, func(i, j int) bool {
		if !boxes[i].CreatedAt.Equal(boxes[j].CreatedAt) {
			return boxes[i].CreatedAt.Before(boxes[j].CreatedAt)
		}
		return boxes[i].ID < boxes[j].ID
	})
}
