//go:build integration

package db_test

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MinterGMT/restaking-research-visuals/internal/concentration"
	"github.com/MinterGMT/restaking-research-visuals/internal/config"
	"github.com/MinterGMT/restaking-research-visuals/internal/db"
	"github.com/MinterGMT/restaking-research-visuals/internal/db/model"
	"github.com/MinterGMT/restaking-research-visuals/testutil"
)

const (
	mongoUsername = "user"
	mongoPassword = "password"
	mongoDatabase = "test-database"

	// this version corresponds to docker tag for mongodb
	// it should be in sync with mongo version used in production
	mongoVersion = "7.0.5"
)

var testDB *db.Database

func TestMain(m *testing.M) {
	// first setup container with MongoDb
	dbConfig, cleanup, err := setupMongoContainer()
	if err != nil {
		log.Fatalf("failed to setup mongo container: %v", err)
	}

	// apply migrations
	err = model.Setup(context.Background(), dbConfig)
	if err != nil {
		cleanup()
		log.Fatalf("failed to init mongo database: %v", err)
	}

	// using config from container mongo initialize client used in tests
	testDB, err = db.New(context.Background(), *dbConfig)
	if err != nil {
		cleanup()
		log.Fatalf("failed to setup client: %v", err)
	}

	// integration tests run on this line
	code := m.Run()
	cleanup()

	os.Exit(code)
}

// setupMongoContainer setups container with mongodb returning db credentials through config.DbConfig,
// cleanup function that MUST be called in the end to cleanup docker resources and an error if there is any
func setupMongoContainer() (*config.DbConfig, func(), error) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		return nil, nil, err
	}

	// there can be only 1 container with the same name, so we add
	// random string in the end in case there is still old container running
	suffix, err := testutil.RandomAlphaNum(3)
	if err != nil {
		return nil, nil, err
	}
	containerName := "mongo-integration-tests-db-" + suffix

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Name:       containerName,
		Repository: "mongo",
		Tag:        mongoVersion,
		Env: []string{
			"MONGO_INITDB_ROOT_USERNAME=" + mongoUsername,
			"MONGO_INITDB_ROOT_PASSWORD=" + mongoPassword,
		},
	}, func(cfg *docker.HostConfig) {
		cfg.AutoRemove = true
		cfg.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		if err := pool.Purge(resource); err != nil {
			log.Printf("failed to purge mongo container: %v", err)
		}
	}

	dbConfig := &config.DbConfig{
		Username: mongoUsername,
		Password: mongoPassword,
		Address:  fmt.Sprintf("mongodb://localhost:%s", resource.GetPort("27017/tcp")),
		DbName:   mongoDatabase,
	}

	// wait until mongo inside the container accepts connections
	err = pool.Retry(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		client, err := db.New(ctx, *dbConfig)
		if err != nil {
			return err
		}
		defer client.Disconnect(ctx)

		return client.Ping(ctx)
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return dbConfig, cleanup, nil
}

func TestQuerySnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()

	snapshot := &model.QuerySnapshotDocument{
		ID:         model.SnapshotID(5292464, "latest"),
		QueryID:    5292464,
		ParamsHash: "latest",
		Rows: []map[string]any{
			{"Operator Name": gofakeit.Company(), "USD value Delegated": gofakeit.Float64Range(1e4, 1e9)},
			{"Operator Name": gofakeit.Company(), "USD value Delegated": gofakeit.Float64Range(1e4, 1e9)},
		},
	}

	require.NoError(t, testDB.SaveQuerySnapshot(ctx, snapshot))

	stored, err := testDB.GetQuerySnapshot(ctx, 5292464, "latest")
	require.NoError(t, err)
	assert.Equal(t, snapshot.ID, stored.ID)
	assert.Len(t, stored.Rows, 2)
	assert.NotZero(t, stored.FetchedAt)

	// second save with the same identity must overwrite, not duplicate
	require.NoError(t, testDB.SaveQuerySnapshot(ctx, snapshot))
}

func TestGetQuerySnapshot_NotFound(t *testing.T) {
	_, err := testDB.GetQuerySnapshot(context.Background(), 999999, "latest")
	require.Error(t, err)
	assert.True(t, db.IsNotFoundError(err))
}

func TestConcentrationSummaryRoundTrip(t *testing.T) {
	ctx := context.Background()

	doc := model.FromSummary("operator_concentration", "Overall Market", concentration.Summary{
		Entities:   4,
		TotalStake: 1000,
		HHI:        3600,
		Gini:       0.35,
	})
	require.NoError(t, testDB.UpsertConcentrationSummary(ctx, doc))

	stored, err := testDB.GetConcentrationSummary(ctx, "operator_concentration", "Overall Market")
	require.NoError(t, err)
	assert.Equal(t, 4, stored.Entities)
	assert.Equal(t, 3600.0, stored.HHI)
	require.NotNil(t, stored.Gini)
	assert.Equal(t, 0.35, *stored.Gini)
}

func TestConcentrationSummary_UndefinedGini(t *testing.T) {
	ctx := context.Background()

	doc := model.FromSummary("operator_concentration", "Empty Group", concentration.Summary{
		Gini: math.NaN(),
	})
	require.NoError(t, testDB.UpsertConcentrationSummary(ctx, doc))

	stored, err := testDB.GetConcentrationSummary(ctx, "operator_concentration", "Empty Group")
	require.NoError(t, err)
	assert.Nil(t, stored.Gini)
	assert.True(t, math.IsNaN(stored.ToSummary().Gini))
}

func TestListConcentrationSummaries(t *testing.T) {
	ctx := context.Background()

	for _, group := range []string{"EigenDA", "Eoracle", "Omni"} {
		doc := model.FromSummary("avs_concentration", group, concentration.Summary{
			Entities:   gofakeit.Number(1, 50),
			TotalStake: gofakeit.Float64Range(1e5, 1e9),
			HHI:        gofakeit.Float64Range(100, 10000),
			Gini:       gofakeit.Float64Range(0, 0.99),
		})
		require.NoError(t, testDB.UpsertConcentrationSummary(ctx, doc))
	}

	docs, err := testDB.ListConcentrationSummaries(ctx, "avs_concentration")
	require.NoError(t, err)
	assert.Len(t, docs, 3)
	for _, doc := range docs {
		assert.Equal(t, "avs_concentration", doc.Module)
	}
}
