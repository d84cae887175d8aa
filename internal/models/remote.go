package models

import "time"

// PresenterRemote is a registered clicker whose presses drive manual navigation
type PresenterRemote struct {
	ID         string    `json:"id"`
	MACAddress string    `json:"macAddress"`
	Name       string    `json:"name"`
	IsActive   bool      `json:"isActive"`
	PressCount int       `json:"pressCount"`
	LastPress  time.Time `json:"lastPress,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// PresentedRow is one audit entry for a row autoplay has presented
type PresentedRow struct {
	ID          int64     `json:"id"`
	Identity    string    `json:"identity"`
	Row         Row       `json:"row"`
	SlideID     string    `json:"slideId,omitempty"`
	PresentedAt time.Time `json:"presentedAt"`
}
