package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/minerva-intel/minerva/pkg/events"
	"github.com/minerva-intel/minerva/pkg/models"
	"github.com/minerva-intel/minerva/pkg/storage"
)

// testClock pins registrations to a known period.
var testClock = func() time.Time {
	return time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, models.SetupJoinTables(db))
	require.NoError(t, db.AutoMigrate(models.ModelsToAutoMigrate()...))
	return db
}

// testEnv bundles the registry with its collaborators so tests can drive a
// mutation end to end and observe the published events.
type testEnv struct {
	registry *Registry
	db       *gorm.DB
	store    *storage.Store
	recorder *events.Recorder
	drainer  *events.Drainer
}

func setupTest(t *testing.T, opts ...Option) *testEnv {
	t.Helper()

	db := setupTestDB(t)
	store := storage.NewMem()
	recorder := events.NewRecorder()
	drainer := events.NewDrainer(db, recorder, nil)

	opts = append([]Option{WithClock(testClock), WithDrainer(drainer)}, opts...)
	reg := New(db, store, nil, nil, Config{ReferencePrefix: "DI"}, opts...)

	return &testEnv{
		registry: reg,
		db:       db,
		store:    store,
		recorder: recorder,
		drainer:  drainer,
	}
}

// drain flushes the outbox into the recorder.
func (e *testEnv) drain(t *testing.T) {
	t.Helper()
	require.NoError(t, e.drainer.DrainOnce(context.Background()))
}

// denyAll rejects every action.
type denyAll struct{}

func (denyAll) Authorize(context.Context, string, Action, string) error {
	return errors.New("access denied")
}

func (e *testEnv) createFacet(t *testing.T, prefix, normalization string) *models.TagFacet {
	t.Helper()
	facet, err := e.registry.CreateFacet(context.Background(), "tester", FacetInput{
		Prefix:           prefix,
		TagNormalization: normalization,
	})
	require.NoError(t, err)
	return facet
}

func (e *testEnv) createTag(t *testing.T, facetID uint, label string) *models.Tag {
	t.Helper()
	tag, err := e.registry.CreateTag(context.Background(), "tester", TagInput{
		FacetID: facetID,
		Label:   label,
	})
	require.NoError(t, err)
	return tag
}

func (e *testEnv) createDocument(t *testing.T, title string, status models.DocumentStatus) *models.Document {
	t.Helper()
	doc, err := e.registry.CreateDocument(context.Background(), "tester", DocumentInput{
		Title:  title,
		Status: status,
	})
	require.NoError(t, err)
	return doc
}
