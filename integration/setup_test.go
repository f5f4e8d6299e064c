package integration

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	_ "github.com/lib/pq"
)

// setupPQ starts a PostGIS container and connects to it with lib/pq.
func setupPQ(t *testing.T) *sql.DB {
	t.Helper()

	var db *sql.DB
	startPostGIS(t, func(dsn string) error {
		var err error
		db, err = sql.Open("postgres", dsn)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
		defer cancel()
		return db.PingContext(ctx)
	})
	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// setupPGX starts a PostGIS container and connects to it with a pgx pool.
func setupPGX(t *testing.T) *pgxpool.Pool {
	t.Helper()

	var db *pgxpool.Pool
	startPostGIS(t, func(dsn string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
		defer cancel()
		var err error
		db, err = pgxpool.New(ctx, dsn)
		if err != nil {
			return err
		}
		return db.Ping(ctx)
	})
	t.Cleanup(func() {
		db.Close() //nolint:errcheck
	})

	return db
}

// startPostGIS runs the postgis image and retries connect until the database
// accepts connections. The image creates the postgis extension in the
// treemap database on first start.
func startPostGIS(t *testing.T, connect func(string) error) {
	t.Helper()

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("Could not construct pool: %s", err)
	}

	err = pool.Client.Ping()
	if err != nil {
		t.Fatalf("Could not connect to Docker: %s", err)
	}
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgis/postgis",
		Tag:        "15-3.4-alpine",
		Env: []string{
			"POSTGRES_PASSWORD=treemap",
			"POSTGRES_USER=treemap",
			"POSTGRES_DB=treemap",
			"listen_addresses='*'",
			"fsync='off'",
			"full_page_writes='off'",
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("Could not start postgis: %s", err)
	}
	resource.Expire(180) //nolint:errcheck

	dsn := fmt.Sprintf("postgres://treemap:treemap@%s/treemap?sslmode=disable", resource.GetHostPort("5432/tcp"))

	// PostGIS restarts once after running its init scripts.
	pool.MaxWait = 180 * time.Second
	if err = pool.Retry(func() error {
		return connect(dsn)
	}); err != nil {
		t.Fatalf("Could not connect to docker: %s", err)
	}

	t.Cleanup(func() {
		if err := pool.Purge(resource); err != nil {
			t.Fatalf("Could not purge resource: %s", err)
		}
	})
}

// createTreemapTables creates the OpenTreeMap tables the default model
// registry points at and fills them with six map features, six plots, four
// trees and one boundary around the first map features.
func createTreemapTables(t *testing.T, exec func(string) error) {
	t.Helper()

	if err := exec(`
		CREATE EXTENSION IF NOT EXISTS hstore;

		CREATE TABLE treemap_mapfeature (
			"id" serial PRIMARY KEY,
			"address" text,
			"updated_at" timestamp,
			"the_geom_webmercator" geometry(Point, 3857),
			"udf_scalar_values" hstore
		);
		CREATE TABLE treemap_plot (
			"mapfeature_ptr_id" int PRIMARY KEY REFERENCES treemap_mapfeature ("id"),
			"width" double precision,
			"udf_scalar_values" hstore
		);
		CREATE TABLE treemap_species (
			"id" serial PRIMARY KEY,
			"common_name" text
		);
		CREATE TABLE treemap_tree (
			"id" serial PRIMARY KEY,
			"plot_id" int REFERENCES treemap_plot ("mapfeature_ptr_id"),
			"species_id" int REFERENCES treemap_species ("id"),
			"height" double precision,
			"diameter" double precision,
			"readonly" boolean,
			"udf_scalar_values" hstore
		);
		CREATE TABLE treemap_boundary (
			"id" serial PRIMARY KEY,
			"name" text,
			"the_geom_webmercator" geometry(MultiPolygon, 3857)
		);
	`); err != nil {
		t.Fatal(err)
	}
	if err := exec(`
		INSERT INTO treemap_mapfeature
			("id", "address",       "updated_at",          "the_geom_webmercator",                    "udf_scalar_values") VALUES
			(1,    '1 Market St',   '2014-01-01 10:00:00', ST_GeomFromEWKT('SRID=3857;POINT(0 0)'),         ''),
			(2,    '2 Market St',   '2014-06-01 10:00:00', ST_GeomFromEWKT('SRID=3857;POINT(100 0)'),       ''),
			(3,    '3 Elm St',      '2015-01-01 10:00:00', ST_GeomFromEWKT('SRID=3857;POINT(1000 1000)'),   ''),
			(4,    '4 Elm St',      '2015-06-01 10:00:00', ST_GeomFromEWKT('SRID=3857;POINT(5000 5000)'),   ''),
			(5,    '5 O''Neil Ave', '2016-01-01 10:00:00', ST_GeomFromEWKT('SRID=3857;POINT(0 50)'),        ''),
			(6,    '6 Pine St',     '2016-06-01 10:00:00', ST_GeomFromEWKT('SRID=3857;POINT(20000 20000)'), '');

		INSERT INTO treemap_plot
			("mapfeature_ptr_id", "width", "udf_scalar_values") VALUES
			(1,                   1,       '"Type"=>"Raised"'),
			(2,                   2,       '"Type"=>"Flat"'),
			(3,                   3,       '"Type"=>"Raised"'),
			(4,                   4,       '"Type"=>"Flat"'),
			(5,                   5,       '"Type"=>"Flat"'),
			(6,                   6,       '"Type"=>"Flat"');

		INSERT INTO treemap_species ("id", "common_name") VALUES
			(1, 'Oak'),
			(2, 'Maple'),
			(3, 'Red Oak');

		INSERT INTO treemap_tree
			("id", "plot_id", "species_id", "height", "diameter", "readonly", "udf_scalar_values") VALUES
			(1,    1,         1,            10,       5,          false,      '"Condition"=>"Good"'),
			(2,    2,         2,            20,       10,         true,       '"Condition"=>"Poor"'),
			(3,    3,         3,            30,       15,         false,      '"Condition"=>"Good"'),
			(4,    4,         NULL,         40,       20,         false,      '"Condition"=>"Dead"');

		INSERT INTO treemap_boundary ("id", "name", "the_geom_webmercator") VALUES
			(1, 'Downtown', ST_GeomFromEWKT('SRID=3857;MULTIPOLYGON(((-10 -10, 200 -10, 200 200, -10 200, -10 -10)))'));
	`); err != nil {
		t.Fatal(err)
	}
}
