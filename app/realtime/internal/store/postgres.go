package store

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/cargorelay/app/realtime/internal/container"
	"github.com/lk2023060901/cargorelay/pkg/database/postgres"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// containerRow containers 表的一行
type containerRow struct {
	ContainerID            string    `db:"container_id"`
	Carrier                string    `db:"carrier"`
	Origin                 string    `db:"origin"`
	Destination            string    `db:"destination"`
	Location               string    `db:"location"`
	Status                 string    `db:"status"`
	HoursAtPort            float64   `db:"hours_at_port"`
	PortCongestion         string    `db:"port_congestion"`
	DocumentsIncomplete    bool      `db:"documents_incomplete"`
	WeatherDelay           bool      `db:"weather_delay"`
	PortEfficiency         *float64  `db:"port_efficiency"`
	CustomsProcessingHours float64   `db:"customs_processing_hours"`
	Temperature            *float64  `db:"temperature"`
	Humidity               *float64  `db:"humidity"`
	RouteDistanceKm        float64   `db:"route_distance_km"`
	RouteDurationHours     float64   `db:"route_duration_hours"`
	UpdatedAt              time.Time `db:"updated_at"`
}

func (r *containerRow) snapshot() *container.Snapshot {
	return &container.Snapshot{
		ID:                     r.ContainerID,
		Carrier:                r.Carrier,
		Origin:                 r.Origin,
		Destination:            r.Destination,
		Location:               r.Location,
		Status:                 container.Status(r.Status),
		HoursAtPort:            r.HoursAtPort,
		PortCongestion:         container.Congestion(r.PortCongestion),
		DocumentsIncomplete:    r.DocumentsIncomplete,
		WeatherDelay:           r.WeatherDelay,
		PortEfficiency:         r.PortEfficiency,
		CustomsProcessingHours: r.CustomsProcessingHours,
		Temperature:            r.Temperature,
		Humidity:               r.Humidity,
		Route: container.Route{
			DistanceKm:    r.RouteDistanceKm,
			DurationHours: r.RouteDurationHours,
		},
		UpdatedAt: r.UpdatedAt,
	}
}

// PostgresReader 从 containers 表读取
type PostgresReader struct {
	client *postgres.Client
	table  string
}

func NewPostgresReader(client *postgres.Client, table string) *PostgresReader {
	return &PostgresReader{client: client, table: table}
}

// selectQuery 可空文本列统一转为空串
func selectQuery(table, id string) sq.SelectBuilder {
	return psql.Select(
		"container_id",
		"COALESCE(carrier, '') AS carrier",
		"COALESCE(origin, '') AS origin",
		"COALESCE(destination, '') AS destination",
		"COALESCE(location, '') AS location",
		"COALESCE(status, '') AS status",
		"COALESCE(hours_at_port, 0) AS hours_at_port",
		"COALESCE(port_congestion, '') AS port_congestion",
		"COALESCE(documents_incomplete, false) AS documents_incomplete",
		"COALESCE(weather_delay, false) AS weather_delay",
		"port_efficiency",
		"COALESCE(customs_processing_hours, 0) AS customs_processing_hours",
		"temperature",
		"humidity",
		"COALESCE(route_distance_km, 0) AS route_distance_km",
		"COALESCE(route_duration_hours, 0) AS route_duration_hours",
		"updated_at",
	).From(table).Where(sq.Eq{"container_id": id}).Limit(1)
}

func (r *PostgresReader) Load(ctx context.Context, id string) (*container.Snapshot, error) {
	row, err := postgres.SelectOne[containerRow](ctx, r.client, selectQuery(r.table, id))
	if err != nil {
		if errors.Is(err, postgres.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "store: load %s from postgres", id)
	}
	return row.snapshot(), nil
}
