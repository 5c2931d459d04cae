package inventory

// Update is a manager edit applied to each date of a bulk range. Nil fields are
// left untouched.
type Update struct {
	Price      *int64
	ClearPrice bool
	UnitsDelta *int
	StopSell   *bool
}

func (u Update) Validate() error {
	if u.Price == nil && !u.ClearPrice && u.UnitsDelta == nil && u.StopSell == nil {
		return ErrEmptyUpdate
	}
	if u.Price != nil && *u.Price < 0 {
		return ErrNegativePrice
	}
	return nil
}

// Apply edits the day. Reserved must already reflect the bookings covering
// the date. A units change that would leave fewer sellable units than are
// reserved is rejected with a ConflictError and leaves the day unchanged.
func (d *Day) Apply(u Update, totalUnits int) error {
	if err := u.Validate(); err != nil {
		return err
	}
	blocked := d.Blocked
	if u.UnitsDelta != nil {
		blocked -= *u.UnitsDelta
		if blocked < 0 {
			return ErrCapacityExceeded
		}
		if totalUnits-blocked-d.Reserved < 0 {
			return &ConflictError{
				RoomTypeID: d.RoomTypeID,
				Date:       d.Date,
				Requested:  -*u.UnitsDelta,
				Available:  max(d.Available(totalUnits), 0),
				StopSell:   d.StopSell,
			}
		}
	}
	d.Blocked = blocked
	switch {
	case u.ClearPrice:
		d.PriceOverride = nil
	case u.Price != nil:
		price := *u.Price
		d.PriceOverride = &price
	}
	if u.StopSell != nil {
		d.StopSell = *u.StopSell
	}
	return nil
}
