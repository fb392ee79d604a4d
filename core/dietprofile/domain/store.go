// Copyright 2025 Nhat-Nguyen Nguyen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package domain

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
)

// Store enforces the one-profile-per-athlete rules on top of the
// persistence ports.
//
// Every mutation reads the current row inside the same transaction that
// writes it. Two concurrent creates for one athlete can both pass the read;
// the unique index on athlete_id rejects the second insert and it surfaces as
// the same PRECONDITION_FAILED as the read check.
type Store struct {
	reader ProfileReadStore
	writer ProfileWriteStore
	newID  func() (uuid.UUID, error)
}

func NewStore(reader ProfileReadStore, writer ProfileWriteStore) *Store {
	return &Store{reader: reader, writer: writer, newID: uuid.NewV7}
}

// FindByAthleteID returns ErrProfileNotFound when absent.
func (s *Store) FindByAthleteID(ctx context.Context, athleteID int64) (*DietaryProfile, error) {
	return s.reader.GetProfileByAthleteID(ctx, athleteID)
}

// Create stores a new profile for athleteID.
func (s *Store) Create(ctx context.Context, athleteID int64, d ProfileDraft) (*DietaryProfile, error) {
	id, err := s.newID()
	if err != nil {
		return nil, err
	}
	draft := NewDietaryProfile(id, athleteID, d)

	var created *DietaryProfile
	err = s.writer.WithTx(ctx, func(ctx context.Context, tx ProfileWriteTx) error {
		_, err := tx.GetProfileForUpdate(ctx, athleteID)
		switch {
		case err == nil:
			return ErrDuplicateProfile
		case !errors.Is(err, ErrProfileNotFound):
			return err
		}

		p, err := tx.CreateProfile(ctx, draft)
		if err != nil {
			return err
		}
		created = p
		return nil
	})
	if errors.Is(err, ErrDuplicateProfile) {
		return nil, preconditionFailed(err, "a dietary profile already exists for athlete %d", athleteID)
	}
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Update merges patch onto the athlete's profile.
func (s *Store) Update(ctx context.Context, athleteID int64, patch ProfilePatch) (*DietaryProfile, error) {
	var updated *DietaryProfile
	err := s.writer.WithTx(ctx, func(ctx context.Context, tx ProfileWriteTx) error {
		current, err := tx.GetProfileForUpdate(ctx, athleteID)
		if err != nil {
			return err
		}
		patch.Apply(current)

		p, err := tx.UpdateProfile(ctx, current)
		if err != nil {
			return err
		}
		updated = p
		return nil
	})
	if errors.Is(err, ErrProfileNotFound) {
		return nil, notFound(err, "no dietary profile found for athlete %d", athleteID)
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the athlete's profile.
func (s *Store) Delete(ctx context.Context, athleteID int64) error {
	err := s.writer.WithTx(ctx, func(ctx context.Context, tx ProfileWriteTx) error {
		current, err := tx.GetProfileForUpdate(ctx, athleteID)
		if err != nil {
			return err
		}
		return tx.DeleteProfile(ctx, current.ID)
	})
	if errors.Is(err, ErrProfileNotFound) {
		return notFound(err, "no dietary profile found for athlete %d", athleteID)
	}
	return err
}
