package services

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"deckgenius/internal/models"
	"deckgenius/internal/playback"
)

// ErrRemoteNotFound is returned for an unknown MAC address
var ErrRemoteNotFound = errors.New("remote not found")

// ErrRemoteInactive is returned when a disabled remote is pressed
var ErrRemoteInactive = errors.New("remote is not active")

// RemoteService manages presenter remotes (hardware clickers)
type RemoteService struct {
	database *sql.DB
	logger   zerolog.Logger
	now      func() time.Time
}

// NewRemoteService creates a new remote service
func NewRemoteService(database *sql.DB, logger zerolog.Logger) *RemoteService {
	return &RemoteService{
		database: database,
		logger:   logger.With().Str("component", "remotes").Logger(),
		now:      time.Now,
	}
}

// KeyForButton maps a remote's button code to a playback key
func KeyForButton(buttonID string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(buttonID)) {
	case "", "1", "next", "right":
		return playback.KeyRight, true
	case "2", "prev", "left":
		return playback.KeyLeft, true
	case "3", "exit", "escape":
		return playback.KeyEscape, true
	case "home", "first":
		return playback.KeyHome, true
	case "end", "last":
		return playback.KeyEnd, true
	}
	return "", false
}

// normalizeMAC normalizes MAC address format
func normalizeMAC(macAddress string) string {
	r := strings.NewReplacer(":", "", "-", "", " ", "")
	return strings.ToUpper(r.Replace(macAddress))
}

// Register registers a remote, returning the existing one if already known
func (rs *RemoteService) Register(macAddress, name string) (*models.PresenterRemote, error) {
	macAddress = normalizeMAC(macAddress)
	if len(macAddress) < 6 {
		return nil, fmt.Errorf("invalid MAC address %q", macAddress)
	}

	existing, err := rs.GetByMAC(macAddress)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrRemoteNotFound) {
		return nil, err
	}

	id := "remote_" + strings.ToLower(macAddress[len(macAddress)-6:])
	now := rs.now()
	query := `INSERT INTO presenter_remotes
		(id, mac_address, name, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	if _, err := rs.database.Exec(query, id, macAddress, name, true, now, now); err != nil {
		return nil, fmt.Errorf("failed to insert remote: %w", err)
	}

	rs.logger.Info().Str("mac", macAddress).Str("id", id).Msg("remote registered")
	return rs.GetByMAC(macAddress)
}

const remoteColumns = `id, mac_address, name, is_active, press_count, last_press, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRemote(s scanner) (*models.PresenterRemote, error) {
	var remote models.PresenterRemote
	var lastPress sql.NullTime
	err := s.Scan(
		&remote.ID,
		&remote.MACAddress,
		&remote.Name,
		&remote.IsActive,
		&remote.PressCount,
		&lastPress,
		&remote.CreatedAt,
		&remote.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastPress.Valid {
		remote.LastPress = lastPress.Time
	}
	return &remote, nil
}

// GetByMAC returns a remote by its MAC address
func (rs *RemoteService) GetByMAC(macAddress string) (*models.PresenterRemote, error) {
	macAddress = normalizeMAC(macAddress)

	row := rs.database.QueryRow(`SELECT `+remoteColumns+` FROM presenter_remotes WHERE mac_address = ?`, macAddress)
	remote, err := scanRemote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRemoteNotFound, macAddress)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query remote: %w", err)
	}
	return remote, nil
}

// RecordPress counts a press. Unknown remotes are registered on first press.
func (rs *RemoteService) RecordPress(macAddress string) (*models.PresenterRemote, error) {
	remote, err := rs.GetByMAC(macAddress)
	if errors.Is(err, ErrRemoteNotFound) {
		rs.logger.Info().Str("mac", normalizeMAC(macAddress)).Msg("auto-registering remote on first press")
		remote, err = rs.Register(macAddress, "")
	}
	if err != nil {
		return nil, err
	}
	if !remote.IsActive {
		return nil, fmt.Errorf("%w: %s", ErrRemoteInactive, remote.MACAddress)
	}

	now := rs.now()
	query := `UPDATE presenter_remotes
		SET press_count = press_count + 1, last_press = ?, updated_at = ?
		WHERE mac_address = ?`
	if _, err := rs.database.Exec(query, now, now, remote.MACAddress); err != nil {
		return nil, fmt.Errorf("failed to update remote press: %w", err)
	}

	remote.PressCount++
	remote.LastPress = now
	remote.UpdatedAt = now
	return remote, nil
}

// SetActive enables or disables a remote
func (rs *RemoteService) SetActive(macAddress string, active bool) error {
	macAddress = normalizeMAC(macAddress)
	result, err := rs.database.Exec(`UPDATE presenter_remotes SET is_active = ?, updated_at = ? WHERE mac_address = ?`,
		active, rs.now(), macAddress)
	if err != nil {
		return fmt.Errorf("failed to update remote: %w", err)
	}
	return requireAffected(result, macAddress)
}

// List returns all registered remotes, newest first
func (rs *RemoteService) List() ([]*models.PresenterRemote, error) {
	rows, err := rs.database.Query(`SELECT ` + remoteColumns + ` FROM presenter_remotes ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query remotes: %w", err)
	}
	defer rows.Close()

	remotes := []*models.PresenterRemote{}
	for rows.Next() {
		remote, err := scanRemote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan remote: %w", err)
		}
		remotes = append(remotes, remote)
	}
	return remotes, rows.Err()
}

// Delete removes a remote
func (rs *RemoteService) Delete(macAddress string) error {
	macAddress = normalizeMAC(macAddress)
	result, err := rs.database.Exec(`DELETE FROM presenter_remotes WHERE mac_address = ?`, macAddress)
	if err != nil {
		return fmt.Errorf("failed to delete remote: %w", err)
	}
	if err := requireAffected(result, macAddress); err != nil {
		return err
	}
	rs.logger.Info().Str("mac", macAddress).Msg("remote deleted")
	return nil
}

func requireAffected(result sql.Result, macAddress string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRemoteNotFound, macAddress)
	}
	return nil
}
