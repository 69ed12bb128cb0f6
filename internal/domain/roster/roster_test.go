package roster_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/okian/hallpass/internal/domain/model"
	"github.com/okian/hallpass/internal/domain/roster"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeStore struct {
	identities map[string]model.Identity
	err        error
}

func (f *fakeStore) FindIdentity(_ context.Context, credentialID string) (model.Identity, error) {
	if f.err != nil {
		return model.Identity{}, f.err
	}
	id, ok := f.identities[credentialID]
	if !ok {
		return model.Identity{}, fmt.Errorf("identity %s: %w", credentialID, model.ErrNotFound)
	}
	return id, nil
}

func (f *fakeStore) SetPresence(context.Context, string, model.Presence) error { return nil }

func (f *fakeStore) UpsertIdentities(_ context.Context, ids []model.Identity) (int, error) {
	return len(ids), nil
}

func (f *fakeStore) CountIdentities(context.Context) (int, error) { return len(f.identities), nil }

func TestLookup(t *testing.T) {
	Convey("Given a roster lookup", t, func() {
		ctx := context.Background()
		store := &fakeStore{identities: map[string]model.Identity{
			"A1B2C3D4": {CredentialID: "A1B2C3D4", DisplayName: "Ali bin Abu", AssignedVenue: "ESP32_HALL_A"},
		}}
		lookup := roster.NewLookup(store)

		Convey("When the credential is registered", func() {
			id, found, err := lookup.Resolve(ctx, "A1B2C3D4")

			Convey("Then the identity is returned", func() {
				So(err, ShouldBeNil)
				So(found, ShouldBeTrue)
				So(id.AssignedVenue, ShouldEqual, "ESP32_HALL_A")
			})
		})

		Convey("When the credential is unknown", func() {
			_, found, err := lookup.Resolve(ctx, "ZZZZ")

			Convey("Then it is reported as not found without error", func() {
				So(err, ShouldBeNil)
				So(found, ShouldBeFalse)
			})
		})

		Convey("When the store fails", func() {
			store.err = errors.New("disk I/O error")
			_, found, err := lookup.Resolve(ctx, "A1B2C3D4")

			Convey("Then the fault is propagated", func() {
				So(found, ShouldBeFalse)
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "disk I/O error")
			})
		})
	})
}

func TestNormalization(t *testing.T) {
	Convey("Given raw roster values", t, func() {
		Convey("Then credentials are trimmed and upper-cased", func() {
			So(roster.NormalizeCredential("  a1b2c3d4\n"), ShouldEqual, "A1B2C3D4")
			So(roster.NormalizeCredential("   "), ShouldBeEmpty)
			So(roster.NormalizeCredential("straße-ß1"), ShouldEqual, "STRAßE-ß1")
			So(roster.NormalizeCredential("ıd-é"), ShouldEqual, "ıD-é")
		})

		Convey("Then names are composed and whitespace collapsed", func() {
			// "e" followed by a combining acute accent.
			So(roster.NormalizeName("  Jose\u0301   María "), ShouldEqual, "Jos\u00e9 María")
			So(roster.NormalizeName("Siti\tSarah"), ShouldEqual, "Siti Sarah")
		})
	})
}

func TestPrepare(t *testing.T) {
	Convey("Given roster pairs for a venue", t, func() {
		Convey("When the pairs are valid", func() {
			ids, err := roster.Prepare(" ESP32_HALL_A ", []roster.Pair{
				{UID: "a1b2c3d4", Name: "Ali bin Abu"},
				{UID: "E5F6G7H8", Name: "Siti  Sarah"},
				{UID: "A1B2C3D4", Name: "Ali Abu"},
			})

			Convey("Then identities are bound to the venue, start OUT and dedupe by uid", func() {
				So(err, ShouldBeNil)
				So(ids, ShouldHaveLength, 2)
				So(ids[0], ShouldResemble, model.Identity{
					CredentialID:  "A1B2C3D4",
					DisplayName:   "Ali Abu",
					AssignedVenue: "ESP32_HALL_A",
					Presence:      model.PresenceOut,
					PhotoRef:      model.DefaultPhotoRef,
				})
				So(ids[1].DisplayName, ShouldEqual, "Siti Sarah")
			})
		})

		Convey("When the venue is missing", func() {
			_, err := roster.Prepare("  ", []roster.Pair{{UID: "X"}})

			Convey("Then ErrMissingVenue is returned", func() {
				So(errors.Is(err, roster.ErrMissingVenue), ShouldBeTrue)
			})
		})

		Convey("When a uid is blank", func() {
			_, err := roster.Prepare("HALL", []roster.Pair{{UID: "X"}, {UID: " ", Name: "Nobody"}})

			Convey("Then the entry position is reported", func() {
				So(errors.Is(err, roster.ErrMissingUID), ShouldBeTrue)
				So(err.Error(), ShouldStartWith, "entry 2")
			})
		})
	})
}

func TestParseCSV(t *testing.T) {
	Convey("Given a roster CSV", t, func() {
		Convey("When it has a header, blank lines and a name with a comma", func() {
			pairs, err := roster.ParseCSV(strings.NewReader("UID,Name\nA1B2C3D4,Ali bin Abu\n\nE5F6G7H8,\"Sarah, Siti\"\n"))

			Convey("Then the header is skipped and rows are returned", func() {
				So(err, ShouldBeNil)
				So(pairs, ShouldResemble, []roster.Pair{
					{UID: "A1B2C3D4", Name: "Ali bin Abu"},
					{UID: "E5F6G7H8", Name: "Sarah, Siti"},
				})
			})
		})

		Convey("When there is no header and a row has only a uid", func() {
			pairs, err := roster.ParseCSV(strings.NewReader("A1B2C3D4\nE5F6G7H8,Siti Sarah"))

			Convey("Then the first row is data and the name is empty", func() {
				So(err, ShouldBeNil)
				So(pairs, ShouldHaveLength, 2)
				So(pairs[0], ShouldResemble, roster.Pair{UID: "A1B2C3D4"})
			})
		})

		Convey("When a row is missing its uid", func() {
			_, err := roster.ParseCSV(strings.NewReader("uid,name\nA1,Ali\n,Ghost\n"))

			Convey("Then the line number is reported", func() {
				So(errors.Is(err, roster.ErrMissingUID), ShouldBeTrue)
				So(err.Error(), ShouldStartWith, "line 3")
			})
		})

		Convey("When quoting is broken", func() {
			_, err := roster.ParseCSV(strings.NewReader("A1,\"Ali\n"))

			Convey("Then ErrMalformedCSV is returned", func() {
				So(errors.Is(err, roster.ErrMalformedCSV), ShouldBeTrue)
			})
		})
	})
}
