// Command seed inserts a demo device with schedules, sensor readings and
// relay activity so a fresh deployment has something on the dashboard.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"time"

	gonanoid "github.com/jaevor/go-nanoid"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type config struct {
	dsn        string
	deviceIP   string
	sensorDays int
}

func main() {
	cfg := parseConfig()
	if cfg.dsn == "" {
		log.Fatal("PG_DSN or DATABASE_URL is required")
	}

	db, err := sql.Open("pgx", cfg.dsn)
	if err != nil {
		log.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("db ping error: %v", err)
	}

	deviceID, err := seedDevice(ctx, db, cfg.deviceIP)
	if err != nil {
		log.Fatalf("seed device error: %v", err)
	}
	log.Printf("device id=%d", deviceID)

	if err := seedSchedules(ctx, db, deviceID); err != nil {
		log.Fatalf("seed schedules error: %v", err)
	}
	if err := seedLogs(ctx, db, deviceID, cfg.sensorDays); err != nil {
		log.Fatalf("seed logs error: %v", err)
	}
	log.Println("seed complete")
}

func parseConfig() config {
	cfg := config{}
	flag.StringVar(&cfg.dsn, "dsn", envDefault("PG_DSN", envDefault("DATABASE_URL", "")), "postgres dsn")
	flag.StringVar(&cfg.deviceIP, "device-ip", "192.168.1.50", "ip address of the demo device")
	flag.IntVar(&cfg.sensorDays, "days", 3, "days of sensor history to generate")
	flag.Parse()
	return cfg
}

func envDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func seedDevice(ctx context.Context, db *sql.DB, ip string) (int64, error) {
	newKey, err := gonanoid.CustomASCII("0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ", 60)
	if err != nil {
		return 0, err
	}
	newSuffix, err := gonanoid.CustomASCII("0123456789abcdefghijklmnopqrstuvwxyz", 4)
	if err != nil {
		return 0, err
	}

	var id int64
	err = db.QueryRowContext(ctx, `
INSERT INTO devices (name, ip_address, api_key, status, last_seen_at, created_at, updated_at)
VALUES ($1, $2, $3, 'active', NOW(), NOW(), NOW())
ON CONFLICT (ip_address) DO UPDATE SET updated_at = NOW()
RETURNING id`, "Smart Watering Device - "+newSuffix(), ip, newKey()).Scan(&id)
	return id, err
}

func seedSchedules(ctx context.Context, db *sql.DB, deviceID int64) error {
	for _, s := range []struct {
		hour, minute int
		active       bool
	}{
		{6, 30, true},
		{18, 0, true},
		{12, 0, false},
	} {
		if _, err := db.ExecContext(ctx, `
INSERT INTO schedules (device_id, hour, minute, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, NOW(), NOW())`, deviceID, s.hour, s.minute, s.active); err != nil {
			return err
		}
	}
	return nil
}

func seedLogs(ctx context.Context, db *sql.DB, deviceID int64, days int) error {
	now := time.Now().UTC()
	for day := 0; day < days; day++ {
		for hour := 0; hour < 24; hour += 6 {
			at := now.AddDate(0, 0, -day).Add(-time.Duration(hour) * time.Hour)
			for sensor := 1; sensor <= 4; sensor++ {
				status := "safe"
				if (day+hour+sensor)%7 == 0 {
					status = "raining"
				}
				if _, err := db.ExecContext(ctx, `
INSERT INTO sensor_logs (device_id, sensor_number, status, created_at)
VALUES ($1, $2, $3, $4)`, deviceID, sensor, status, at); err != nil {
					return err
				}
			}
		}

		morning := now.AddDate(0, 0, -day)
		if _, err := db.ExecContext(ctx, `
INSERT INTO relay_logs (device_id, action, duration_seconds, created_at)
VALUES ($1, 'scheduled', 300, $2)`, deviceID, morning); err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx, `
INSERT INTO relay_logs (device_id, action, duration_seconds, created_at)
VALUES ($1, 'deactivated', NULL, $2)`, deviceID, morning.Add(5*time.Minute)); err != nil {
			return err
		}
	}
	return nil
}
