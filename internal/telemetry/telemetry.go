// Package telemetry pushes session statistics to InfluxDB. It is
// config-gated and degrades to a no-op when disabled or unreachable, so a
// session never blocks on metrics.
package telemetry

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/vigilspace/vigil/pkg/core"
)

// Measurement names written to the session bucket.
const (
	measurementPlacements      = "session_placements"
	measurementPersistFailures = "persist_failures"
	measurementCandleCount     = "candle_count"
)

// Manager handles the InfluxDB connection and writes. The zero manager
// (or one whose Connect failed) is valid to use; every write is a no-op.
type Manager struct {
	Client  influxdb2.Client
	Writer  influxdb2_api.WriteAPI
	IsValid bool
	Logger  zerolog.Logger
}

// NewManager creates a disabled manager; call Connect to activate it.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{Logger: log}
}

// Connect establishes the InfluxDB connection when telemetry is enabled.
// Any failure leaves the manager disabled and is logged, never returned as
// fatal to the session.
func (m *Manager) Connect() {
	if !viper.GetBool("influx.enabled") {
		m.Logger.Debug().Msg("influx telemetry disabled")
		return
	}

	m.Client = influxdb2.NewClientWithOptions(
		viper.GetString("influx.url"),
		viper.GetString("influx.token"),
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	running, err := m.Client.Ping(context.Background())
	if err != nil || !running {
		m.Logger.Warn().Err(err).Msg("influx unreachable, telemetry disabled")
		return
	}

	if err := m.ensureBucket(); err != nil {
		m.Logger.Warn().Err(err).Msg("influx bucket setup failed, telemetry disabled")
		return
	}

	bucket := viper.GetString("influx.bucket")
	m.Writer = m.Client.WriteAPI(viper.GetString("influx.org"), bucket)
	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			m.Logger.Error().Err(writeErr).Str("bucket", bucket).
				Msg("error sending telemetry to influx")
		}
	}(m.Writer.Errors())

	m.IsValid = true
	m.Logger.Info().Str("bucket", bucket).Msg("influx telemetry initialized")
}

func (m *Manager) ensureBucket() error {
	ctx := context.Background()
	orgName := viper.GetString("influx.org")
	bucketName := viper.GetString("influx.bucket")

	org, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Info().Str("org", orgName).Msg("organization not found, creating")
		org, err = m.Client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			return err
		}
	}

	_, err = m.Client.BucketsAPI().FindBucketByName(ctx, bucketName)
	if err != nil {
		m.Logger.Info().Str("bucket", bucketName).Msg("bucket not found, creating")

		rule := domain.RetentionRuleTypeExpire
		_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, org, bucketName, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: 60 * 60 * 24 * 90, // 90 days
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Close flushes pending writes and shuts down the client.
func (m *Manager) Close() {
	if m.Client != nil {
		m.Client.Close()
	}
}

// RecordPlacement counts a placed candle, tagged by style.
func (m *Manager) RecordPlacement(style core.Style) {
	if !m.IsValid {
		return
	}
	p := influxdb2.NewPointWithMeasurement(measurementPlacements).
		AddTag("style", string(style)).
		AddField("count", 1).
		SetTime(time.Now())
	m.Writer.WritePoint(p)
}

// RecordPersistFailure counts an annotation write that exhausted its
// retries.
func (m *Manager) RecordPersistFailure() {
	if !m.IsValid {
		return
	}
	p := influxdb2.NewPointWithMeasurement(measurementPersistFailures).
		AddField("count", 1).
		SetTime(time.Now())
	m.Writer.WritePoint(p)
}

// RecordCandleCount gauges the cache size after a load or placement.
func (m *Manager) RecordCandleCount(n int) {
	if !m.IsValid {
		return
	}
	p := influxdb2.NewPointWithMeasurement(measurementCandleCount).
		AddField("total", n).
		SetTime(time.Now())
	m.Writer.WritePoint(p)
}
