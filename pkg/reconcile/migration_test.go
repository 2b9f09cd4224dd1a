package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dirmigrate/pkg/applyset"
	"github.com/marmos91/dirmigrate/pkg/directory"
	"github.com/marmos91/dirmigrate/pkg/privacy"
	"github.com/marmos91/dirmigrate/pkg/userservice/models"
	"github.com/marmos91/dirmigrate/pkg/userservice/store"
)

func runMigration(t *testing.T, s store.Store, src directory.Source, dataset *applyset.Dataset) *Summary {
	t.Helper()
	m := &Migration{
		Source:  src,
		Dataset: dataset,
		Store:   s,
		Options: Options{PoolID: "eu-west-2_test", Workers: 4},
	}
	summary, err := m.Run(context.Background())
	require.NoError(t, err)
	return summary
}

func TestMigrationScenarios(t *testing.T) {
	ctx := context.Background()
	u1 := record("u1", "a@b.com", "dept=Treasury,user=ordinary_user")

	t.Run("new identity with empty dataset", func(t *testing.T) {
		s := newTestStore(t)
		summary := runMigration(t, s, directory.NewStaticSource([]directory.Record{u1}), nil)

		depts, err := s.ListDepartments(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"Treasury"}, models.DepartmentNames(depts))

		rs, err := s.ListRoles(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"APPLICANT", "FIND"}, models.RoleNames(rs))

		user, err := s.GetUserByStableID(ctx, "u1")
		require.NoError(t, err)
		assert.Nil(t, user.LegacyForeignKey)
		assert.Equal(t, depts[0].ID, *user.DepartmentID)

		names, err := s.ListUserRoleNames(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, []string{"APPLICANT", "FIND"}, names)

		assert.Equal(t, 1, summary.Pages)
		assert.Equal(t, 1, summary.Seen)
		assert.Equal(t, 1, summary.Parsed)
		assert.Equal(t, 1, summary.DepartmentsCreated)
		assert.Equal(t, 2, summary.RolesCreated)
		assert.Equal(t, 1, summary.UsersCreated)
		assert.Equal(t, 2, summary.Associations)
		assert.Equal(t, 1, summary.Unmatched)
		assert.Equal(t, 1, summary.Processed())
		assert.NotEmpty(t, summary.RunID)
	})

	t.Run("legacy key joined from dataset", func(t *testing.T) {
		s := newTestStore(t)
		dataset := applyset.NewDataset([]applyset.Row{{StableID: "u1", LegacyForeignKey: "42"}})
		summary := runMigration(t, s, directory.NewStaticSource([]directory.Record{u1}), dataset)

		user, err := s.GetUserByStableID(ctx, "u1")
		require.NoError(t, err)
		require.NotNil(t, user.LegacyForeignKey)
		assert.Equal(t, "42", *user.LegacyForeignKey)
		assert.Zero(t, summary.Unmatched)
	})

	t.Run("second run creates nothing", func(t *testing.T) {
		s := newTestStore(t)
		runMigration(t, s, directory.NewStaticSource([]directory.Record{u1}), nil)
		summary := runMigration(t, s, directory.NewStaticSource([]directory.Record{u1}), nil)

		assert.Zero(t, summary.DepartmentsCreated)
		assert.Zero(t, summary.RolesCreated)
		assert.Zero(t, summary.UsersCreated)
		assert.Zero(t, summary.Associations)
		assert.Equal(t, 1, summary.UsersExisting)
		assert.Zero(t, summary.Unmatched)

		users, err := s.CountUsers(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, users)
		assocs, err := s.CountUserRoles(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 2, assocs)
	})

	t.Run("empty features creates nothing", func(t *testing.T) {
		s := newTestStore(t)
		summary := runMigration(t, s, directory.NewStaticSource([]directory.Record{record("u1", "a@b.com", "")}), nil)

		assert.Equal(t, 1, summary.Seen)
		assert.Equal(t, 1, summary.Malformed)
		assert.Zero(t, summary.Parsed)

		users, err := s.CountUsers(ctx)
		require.NoError(t, err)
		assert.Zero(t, users)
		depts, err := s.ListDepartments(ctx)
		require.NoError(t, err)
		assert.Empty(t, depts)
		rs, err := s.ListRoles(ctx)
		require.NoError(t, err)
		assert.Empty(t, rs)
	})
}

func TestMigrationAcrossPages(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	metrics := newRecordingMetrics()

	src := directory.NewStaticSource(
		[]directory.Record{
			record("u1", "a@b.com", "dept=Treasury,user=ordinary_user"),
			record("u2", "c@d.com", "dept=HMRC,user=administrator"),
		},
		[]directory.Record{
			record("u3", "e@f.com", "dept=Treasury,user=super_administrator,user=technical_support"),
			{ID: "u4", Contact: "g@h.com"},
			record("", "i@j.com", "dept=DWP"),
		},
		[]directory.Record{
			record("u5", "k@l.com", "user=custom_role"),
		},
	)

	m := &Migration{
		Source:  src,
		Store:   s,
		Metrics: metrics,
		Options: Options{PoolID: "pool", Workers: 3},
	}
	summary, err := m.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, src.Calls())
	assert.Equal(t, 3, summary.Pages)
	assert.Equal(t, 6, summary.Seen)
	assert.Equal(t, 4, summary.Parsed)
	assert.Equal(t, 2, summary.Malformed)
	assert.Equal(t, 2, summary.DepartmentsCreated)
	assert.Equal(t, 6, summary.RolesCreated)
	assert.Equal(t, 4, summary.UsersCreated)
	assert.Zero(t, summary.LookupMisses)

	names, err := s.ListUserRoleNames(ctx, "u3")
	require.NoError(t, err)
	assert.Equal(t, []string{"ADMIN", "APPLICANT", "FIND", "SUPER_ADMIN", "TECHNICAL_SUPPORT"}, names)

	names, err = s.ListUserRoleNames(ctx, "u5")
	require.NoError(t, err)
	assert.Equal(t, []string{"custom_role"}, names)

	user, err := s.GetUserByStableID(ctx, "u5")
	require.NoError(t, err)
	assert.Nil(t, user.DepartmentID)

	assert.Equal(t, 3, metrics.pages)
	assert.Equal(t, 2, metrics.skipped[SkipMalformed])
	assert.Equal(t, 4, metrics.outcomes[OutcomeCreated])
}

func TestMigrationDryRun(t *testing.T) {
	ctx := context.Background()
	journal := store.NewJournal()
	s := newTestStore(t, store.WithDryRun(journal))

	m := &Migration{
		Source:  directory.NewStaticSource([]directory.Record{record("u1", "a@b.com", "dept=Treasury,user=ordinary_user")}),
		Store:   s,
		Options: Options{PoolID: "pool", DryRun: true},
	}
	summary, err := m.Run(ctx)
	require.NoError(t, err)

	assert.True(t, summary.DryRun)
	assert.Equal(t, 1, summary.DepartmentsCreated)
	assert.Equal(t, 2, summary.RolesCreated)
	assert.Equal(t, 1, summary.UsersCreated)
	assert.Equal(t, 2, summary.Associations)
	assert.Zero(t, summary.LookupMisses)

	assert.Equal(t, 6, journal.Len())
	assert.Equal(t, 1, journal.Count(models.TableDepartments))
	assert.Equal(t, 2, journal.Count(models.TableRoles))
	assert.Equal(t, 1, journal.Count(models.TableUsers))
	assert.Equal(t, 2, journal.Count(models.TableUserRoles))

	users, err := s.CountUsers(ctx)
	require.NoError(t, err)
	assert.Zero(t, users)
	depts, err := s.ListDepartments(ctx)
	require.NoError(t, err)
	assert.Empty(t, depts)
}

func TestMigrationDuplicateStableIDs(t *testing.T) {
	ctx := context.Background()
	journal := store.NewJournal()
	s := newTestStore(t, store.WithDryRun(journal))
	metrics := newRecordingMetrics()

	m := &Migration{
		Source: directory.NewStaticSource(
			[]directory.Record{record("u1", "a@b.com", "user=ordinary_user")},
			[]directory.Record{record("u1", "a@b.com", "user=ordinary_user")},
		),
		Store:   s,
		Metrics: metrics,
		Options: Options{PoolID: "pool", DryRun: true, Workers: 4},
	}
	summary, err := m.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Seen)
	assert.Equal(t, 1, summary.Parsed)
	assert.Equal(t, 1, summary.Duplicates)
	assert.Equal(t, 1, summary.UsersCreated)
	assert.Equal(t, 2, summary.Associations)
	assert.Equal(t, 1, metrics.skipped[SkipDuplicate])

	assert.Equal(t, 1, journal.Count(models.TableUsers))
	assert.Equal(t, 2, journal.Count(models.TableUserRoles))
}

func TestMigrationContactCollision(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	uniqueContacts(t, s)

	summary := runMigration(t, s, directory.NewStaticSource([]directory.Record{
		record("u1", "same@b.com", "user=ordinary_user"),
		record("u2", "same@b.com", "user=ordinary_user"),
	}), nil)

	assert.Equal(t, 1, summary.UsersCreated)
	assert.Equal(t, 1, summary.UsersRejected)
	assert.Zero(t, summary.UsersExisting)
	assert.Equal(t, 2, summary.Associations)
	assert.Equal(t, 2, summary.Processed())

	users, err := s.CountUsers(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, users)
	assocs, err := s.CountUserRoles(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, assocs)
}

func TestMigrationResumesAfterPartialFailure(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	src := []directory.Record{record("u1", "a@b.com", "user=ordinary_user")}

	restore := failInserts(t, s, models.TableUserRoles)
	_, err := (&Migration{Source: directory.NewStaticSource(src), Store: s}).Run(ctx)
	require.ErrorIs(t, err, ErrStoreUnavailable)

	users, err := s.CountUsers(ctx)
	require.NoError(t, err)
	assert.Zero(t, users)

	restore()
	summary := runMigration(t, s, directory.NewStaticSource(src), nil)
	assert.Equal(t, 1, summary.UsersCreated)
	assert.Equal(t, 2, summary.Associations)

	names, err := s.ListUserRoleNames(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"APPLICANT", "FIND"}, names)
}

func TestMigrationWithPrivacy(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	tr, err := privacy.New(privacy.Config{Secret: "correct horse battery staple"})
	require.NoError(t, err)

	m := &Migration{
		Source:  directory.NewStaticSource([]directory.Record{record("u1", "a@b.com", "user=ordinary_user")}),
		Privacy: tr,
		Store:   s,
	}
	summary, err := m.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.UsersCreated)

	user, err := s.GetUserByStableID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, tr.Hash("a@b.com"), user.Contact)
	require.NotNil(t, user.EncryptedContact)

	contact, err := tr.Unprotect(*user.EncryptedContact)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", contact)
}

func TestMigrationFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("directory unavailable", func(t *testing.T) {
		s := newTestStore(t)
		src := directory.NewStaticSource([]directory.Record{record("u1", "a@b.com", "user=x")})
		src.Err = errors.New("throttled")

		_, err := (&Migration{Source: src, Store: s}).Run(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDirectoryUnavailable)
		assert.ErrorIs(t, err, directory.ErrUnavailable)
		assert.ErrorContains(t, err, "throttled")

		users, err := s.CountUsers(ctx)
		require.NoError(t, err)
		assert.Zero(t, users)
	})

	t.Run("store unavailable", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, s.Close())
		src := directory.NewStaticSource([]directory.Record{record("u1", "a@b.com", "user=x")})

		summary, err := (&Migration{Source: src, Store: s}).Run(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrStoreUnavailable)
		require.NotNil(t, summary)
		assert.Equal(t, 1, summary.Parsed)
	})

	t.Run("cancelled", func(t *testing.T) {
		s := newTestStore(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := (&Migration{Source: directory.NewStaticSource(nil), Store: s}).Run(cctx)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("missing components", func(t *testing.T) {
		_, err := (&Migration{}).Run(ctx)
		assert.Error(t, err)
	})
}
