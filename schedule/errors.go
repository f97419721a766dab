package schedule

import "github.com/pkg/errors"

var (
	ErrSlotframeExists   = errors.New("slotframe handle already exists")
	ErrSlotframeNotFound = errors.New("slotframe not found")
	ErrLinkNotFound      = errors.New("link not found")
	ErrTooManySlotframes = errors.New("maximum slotframe count reached")
)
