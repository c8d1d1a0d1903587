package warehouse

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/attribly/convrelay/internal/config"
	eventdomain "github.com/attribly/convrelay/internal/event/domain"
	"go.uber.org/zap"
)

// ClickHouse implements Warehouse over the native protocol.
type ClickHouse struct {
	conn        driver.Conn
	table       string
	mediaSource string
	log         *zap.Logger
}

func NewClickHouse(cfg config.Config, log *zap.Logger) (*ClickHouse, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{net.JoinHostPort(cfg.ClickHouseHost, cfg.ClickHousePort)},
		Auth: clickhouse.Auth{
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUser,
			Password: cfg.ClickHousePassword,
		},
		DialTimeout: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse connection: %w", err)
	}

	return &ClickHouse{
		conn:        conn,
		table:       cfg.ClickHouseDatabase + "." + cfg.WarehouseTable,
		mediaSource: cfg.MediaSource,
		log:         log.Named("warehouse"),
	}, nil
}

func (c *ClickHouse) Close() error {
	return c.conn.Close()
}

func (c *ClickHouse) CountEvents(ctx context.Context) (int64, error) {
	query := fmt.Sprintf(`SELECT count()
		FROM %s
		WHERE media_source = ?
		AND event_name IN (?)`, c.table)

	var count uint64
	if err := c.conn.QueryRow(ctx, query, c.mediaSource, eventdomain.KnownEventNames()).Scan(&count); err != nil {
		return 0, fmt.Errorf("count warehouse events: %w", err)
	}
	return int64(count), nil
}

func (c *ClickHouse) FetchNewest(ctx context.Context, limit int64) ([]eventdomain.Event, error) {
	query := fmt.Sprintf(`SELECT event_time, event_name, af_sub1
		FROM %s
		WHERE media_source = ?
		AND event_name IN (?)
		ORDER BY event_time DESC
		LIMIT ?`, c.table)

	rows, err := c.conn.Query(ctx, query, c.mediaSource, eventdomain.KnownEventNames(), limit)
	if err != nil {
		return nil, fmt.Errorf("fetch warehouse events: %w", err)
	}
	defer rows.Close()

	events := make([]eventdomain.Event, 0, limit)
	for rows.Next() {
		var (
			eventTime    time.Time
			eventName    string
			subscriberID string
		)
		if err := rows.Scan(&eventTime, &eventName, &subscriberID); err != nil {
			return nil, fmt.Errorf("scan warehouse row: %w", err)
		}
		events = append(events, eventdomain.Event{
			EventTime:    eventTime,
			EventName:    eventdomain.EventName(eventName),
			SubscriberID: subscriberID,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate warehouse rows: %w", err)
	}

	c.log.Debug("fetched warehouse rows", zap.Int("rows", len(events)))
	return events, nil
}
