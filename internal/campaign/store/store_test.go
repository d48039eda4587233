package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"lifeflow/internal/campaign/models"
	id "lifeflow/pkg/domain"
	"lifeflow/pkg/platform/sentinel"
)

var now = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func buildCampaign(t require.TestingT, seq int64, status models.Status, start, end time.Time) *models.Campaign {
	return buildCampaignIn(t, seq, status, "", start, end)
}

func buildCampaignIn(t require.TestingT, seq int64, status models.Status, city string, start, end time.Time) *models.Campaign {
	c, err := models.NewCampaign(id.NewUserID(), id.FormatDisplayID(id.CampaignPrefix, now, seq), models.Draft{
		Title:        "Drive",
		Description:  "Drive",
		Status:       status,
		Location:     models.Location{Name: "Hall", Address: models.Address{City: city}},
		StartDate:    start,
		EndDate:      end,
		TargetDonors: 10,
	}, now.Add(time.Duration(seq)*time.Minute))
	require.NoError(t, err)
	return c
}

func noCheck(*models.Campaign) error { return nil }

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
}

func (s *InMemoryStoreSuite) add(c *models.Campaign) *models.Campaign {
	s.Require().NoError(s.store.Create(s.ctx, c))
	return c
}

func (s *InMemoryStoreSuite) TestCreateAndFind() {
	c := s.add(buildCampaign(s.T(), 1, "", now, now.AddDate(0, 0, 3)))

	found, err := s.store.FindByID(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal("CAMP2403100001", found.DisplayID)

	s.ErrorIs(s.store.Create(s.ctx, buildCampaign(s.T(), 1, "", now, now.AddDate(0, 0, 1))), sentinel.ErrConflict)
	_, err = s.store.FindByID(s.ctx, id.NewCampaignID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestListAndActive() {
	later := s.add(buildCampaign(s.T(), 1, models.StatusActive, now.AddDate(0, 0, -1), now.AddDate(0, 0, 9)))
	sooner := s.add(buildCampaign(s.T(), 2, models.StatusActive, now.AddDate(0, 0, -2), now.AddDate(0, 0, 2)))
	s.add(buildCampaign(s.T(), 3, models.StatusActive, now.AddDate(0, 0, 5), now.AddDate(0, 0, 7)))
	planning := s.add(buildCampaign(s.T(), 4, models.StatusPlanning, now.AddDate(0, 0, -1), now.AddDate(0, 0, 1)))

	s.Run("newest first with status filter", func() {
		all, total, err := s.store.List(s.ctx, models.ListFilter{}, id.Page{Page: 1, Limit: 10})
		s.Require().NoError(err)
		s.Equal(4, total)
		s.Equal(planning.ID, all[0].ID)

		_, total, err = s.store.List(s.ctx, models.ListFilter{Status: models.StatusActive}, id.Page{Page: 1, Limit: 10})
		s.Require().NoError(err)
		s.Equal(3, total)
	})

	s.Run("active is windowed and ordered by end date", func() {
		active, err := s.store.ListActive(s.ctx, now)
		s.Require().NoError(err)
		s.Require().Len(active, 2)
		s.Equal(sooner.ID, active[0].ID)
		s.Equal(later.ID, active[1].ID)

		n, err := s.store.CountActive(s.ctx, now)
		s.Require().NoError(err)
		s.Equal(2, n)
	})
}

func (s *InMemoryStoreSuite) TestListByCity() {
	open := s.add(buildCampaignIn(s.T(), 1, models.StatusActive, "Lagos", now, now.AddDate(0, 0, 3)))
	planned := s.add(buildCampaignIn(s.T(), 2, models.StatusPlanning, "Lagos Island", now.AddDate(0, 0, 5), now.AddDate(0, 0, 6)))
	s.add(buildCampaignIn(s.T(), 3, models.StatusCompleted, "Lagos", now.AddDate(0, 0, -9), now.AddDate(0, 0, -3)))
	s.add(buildCampaignIn(s.T(), 4, models.StatusActive, "Abuja", now, now.AddDate(0, 0, 3)))
	page := id.Page{Page: 1, Limit: 10}

	s.Run("matches case-insensitively over planning and active campaigns", func() {
		found, total, err := s.store.List(s.ctx, models.ListFilter{City: "lAGOS"}, page)
		s.Require().NoError(err)
		s.Equal(2, total)
		s.Equal(planned.ID, found[0].ID)
		s.Equal(open.ID, found[1].ID)
	})

	s.Run("an explicit status overrides the default set", func() {
		_, total, err := s.store.List(s.ctx, models.ListFilter{City: "lagos", Status: models.StatusCompleted}, page)
		s.Require().NoError(err)
		s.Equal(1, total)
	})

	s.Run("no match is an empty page", func() {
		found, total, err := s.store.List(s.ctx, models.ListFilter{City: "Kano"}, page)
		s.Require().NoError(err)
		s.Zero(total)
		s.NotNil(found)
		s.Empty(found)
	})
}

func (s *InMemoryStoreSuite) TestExecute() {
	c := s.add(buildCampaign(s.T(), 1, models.StatusActive, now, now.AddDate(0, 0, 3)))

	s.Run("mutation error leaves the campaign untouched", func() {
		_, err := s.store.Execute(s.ctx, c.ID, noCheck, func(c *models.Campaign) error {
			return c.AddFeedback(9, "", nil, now)
		})
		s.Error(err)
		found, _ := s.store.FindByID(s.ctx, c.ID)
		s.Empty(found.Feedback)
	})

	s.Run("donation is persisted without aliasing", func() {
		updated, err := s.store.Execute(s.ctx, c.ID, noCheck, func(c *models.Campaign) error {
			c.AddDonation(id.NewDonorID(), 2, id.OPositive, "", now)
			return nil
		})
		s.Require().NoError(err)
		updated.Results.BloodTypeDistribution[id.OPositive] = 99

		found, _ := s.store.FindByID(s.ctx, c.ID)
		s.Equal(2, found.UnitsCollected)
		s.Equal(2, found.Results.BloodTypeDistribution[id.OPositive])
	})
}

func (s *InMemoryStoreSuite) TestStatsByStatus() {
	a := buildCampaign(s.T(), 1, models.StatusActive, now, now.AddDate(0, 0, 3))
	a.UnitsCollected = 5
	s.add(a)
	s.add(buildCampaign(s.T(), 2, models.StatusActive, now, now.AddDate(0, 0, 3)))
	s.add(buildCampaign(s.T(), 3, models.StatusCompleted, now.AddDate(0, 0, -9), now.AddDate(0, 0, -3)))

	rows, err := s.store.StatsByStatus(s.ctx)
	s.Require().NoError(err)
	stats := models.BuildStats(rows)
	s.Len(stats, 5)
	s.Equal(models.StatusPlanning, stats[0].Status)
	s.Equal(0, stats[0].Count)
	s.Equal(models.StatusActive, stats[1].Status)
	s.Equal(2, stats[1].Count)
	s.Equal(20, stats[1].TotalTargetUnits)
	s.Equal(5, stats[1].TotalCollectedUnits)
	s.InDelta(0.25, stats[1].AverageProgress, 0.0001)
	s.Equal(1, stats[2].Count)
}

func TestPostgresStoreCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	c := buildCampaign(t, 1, "", now, now.AddDate(0, 0, 3))

	mock.ExpectExec("INSERT INTO campaigns").
		WithArgs(c.ID.String(), "CAMP2403100001", "planning", c.StartDate, c.EndDate, sqlmock.AnyArg(), c.CreatedAt, c.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, NewPostgres(db).Create(context.Background(), c))

	mock.ExpectExec("INSERT INTO campaigns").WillReturnError(&pgconn.PgError{Code: "23505"})
	assert.ErrorIs(t, NewPostgres(db).Create(context.Background(), c), sentinel.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreExecute(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	c := buildCampaign(t, 1, models.StatusActive, now, now.AddDate(0, 0, 3))
	doc, err := json.Marshal(c)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT doc FROM campaigns WHERE id = \\$1 FOR UPDATE").
		WithArgs(c.ID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"doc"}).AddRow(doc))
	mock.ExpectExec("UPDATE campaigns").
		WithArgs(c.ID.String(), "completed", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	updated, err := NewPostgres(db).Execute(context.Background(), c.ID,
		func(c *models.Campaign) error { return c.CanComplete() },
		func(c *models.Campaign) error { c.Complete(now); return nil })
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, updated.Status)
	assert.Equal(t, "Hall", updated.Location.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreExecuteMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	campaignID := id.NewCampaignID()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT doc FROM campaigns").
		WithArgs(campaignID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"doc"}))
	mock.ExpectRollback()

	_, err = NewPostgres(db).Execute(context.Background(), campaignID, noCheck,
		func(*models.Campaign) error { return nil })
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreStatsByStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT status").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count", "target", "collected", "progress"}).
			AddRow("active", 2, 20, 5, 0.25).
			AddRow("completed", 1, 10, 10, 1.0))

	rows, err := NewPostgres(db).StatsByStatus(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, models.StatusActive, rows[0].Status)
	assert.Equal(t, 20, rows[0].TotalTargetUnits)
	assert.InDelta(t, 0.25, rows[0].AverageProgress, 0.0001)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreListByCity(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	c := buildCampaignIn(t, 1, models.StatusActive, "Lagos", now, now.AddDate(0, 0, 3))
	doc, err := json.Marshal(c)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM campaigns").
		WithArgs(`{"active","planning"}`, "lagos").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT doc FROM campaigns").
		WithArgs(`{"active","planning"}`, "lagos", 10, 0).
		WillReturnRows(sqlmock.NewRows([]string{"doc"}).AddRow(doc))

	found, total, err := NewPostgres(db).List(context.Background(), models.ListFilter{City: " lagos "}, id.Page{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, found, 1)
	assert.Equal(t, "Lagos", found[0].Location.Address.City)
	assert.NoError(t, mock.ExpectationsWereMet())
}
