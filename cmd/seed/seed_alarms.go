// Command seed populates a local Postgres instance with a handful of
// sample upstream rows (alarm_summary, alarm_event, alarm_code, device) so
// cmd/reconciler has something to reconcile against in development.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	dsn   = flag.String("dsn", "", "Database connection string")
	clean = flag.Bool("clean", false, "Delete existing seeded rows before inserting")
)

type seedAlarm struct {
	alarmID, eventID, alarmCode int64
	level                       int
	state                       string
	hostName, hostIP            string
	application, domain, env    string
	detail                      string
	alarmName, faultReason      string
	remediation, deviceID       string
	taskType, alarmTypeName     string
}

var sampleAlarms = []seedAlarm{
	{alarmID: 1001, eventID: 2001, alarmCode: 5001, level: 1, state: "U", hostName: "edge-gw-01", hostIP: "10.0.1.11", application: "gateway", domain: "core", env: "prod", detail: "link down on uplink 0/1", alarmName: "LinkDown", faultReason: "physical layer fault", remediation: "check SFP and cabling", deviceID: "dev-edge-01", taskType: "network", alarmTypeName: "connectivity"},
	{alarmID: 1002, eventID: 2002, alarmCode: 5002, level: 2, state: "U", hostName: "core-sw-04", hostIP: "10.0.2.14", application: "switch", domain: "core", env: "prod", detail: "CPU utilization above threshold", alarmName: "HighCPU", faultReason: "sustained load", remediation: "review traffic shaping policy", deviceID: "dev-core-04", taskType: "capacity", alarmTypeName: "performance"},
	{alarmID: 1003, eventID: 2003, alarmCode: 5003, level: 3, state: "A", hostName: "access-ap-22", hostIP: "10.0.3.22", application: "wifi-ap", domain: "access", env: "staging", detail: "temporary signal degradation", alarmName: "SignalDegraded", faultReason: "", remediation: "", deviceID: "dev-ap-22", taskType: "wireless", alarmTypeName: "connectivity"},
	{alarmID: 1004, eventID: 2004, alarmCode: 5004, level: 1, state: "M", hostName: "core-rtr-02", hostIP: "10.0.0.2", application: "router", domain: "core", env: "prod", detail: "BGP session flapping", alarmName: "BGPFlap", faultReason: "peer misconfiguration", remediation: "verify peer AS and hold timers", deviceID: "dev-core-02", taskType: "routing", alarmTypeName: "protocol"},
}

func main() {
	flag.Parse()
	if *dsn == "" {
		log.Fatal("Error: -dsn flag is required\nUsage: go run ./cmd/seed -dsn 'postgres://...'")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, *dsn)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer pool.Close()

	if *clean {
		fmt.Println("cleaning previously seeded rows...")
		if err := cleanSeeded(ctx, pool); err != nil {
			log.Fatalf("failed to clean seeded rows: %v", err)
		}
	}

	fmt.Println("seeding sample alarms...")
	now := time.Now().UTC()
	for _, a := range sampleAlarms {
		if err := seedOne(ctx, pool, a, now); err != nil {
			log.Printf("warning: failed to seed alarm %d: %v", a.alarmID, err)
			continue
		}
		fmt.Printf("  seeded alarm_id=%d host=%s level=%d state=%s\n", a.alarmID, a.hostName, a.level, a.state)
	}
	fmt.Println("seeding complete")
}

func seedOne(ctx context.Context, pool *pgxpool.Pool, a seedAlarm, now time.Time) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO device (device_id, host_name, host_ip, task_type)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (host_name) DO UPDATE SET host_ip = EXCLUDED.host_ip
	`, a.deviceID, a.hostName, a.hostIP, a.taskType); err != nil {
		return fmt.Errorf("insert device: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO alarm_code (alarm_code, alarm_name, fault_reason, remediation, alarm_type_name)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (alarm_code) DO UPDATE SET alarm_name = EXCLUDED.alarm_name
	`, a.alarmCode, a.alarmName, a.faultReason, a.remediation, a.alarmTypeName); err != nil {
		return fmt.Errorf("insert alarm_code: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO alarm_event (event_id, detail, ext_1, ext_2, ext_3, ext_4, ext_5, ext_6, ext_7, ext_8, ext_9, ext_10, event_time)
		VALUES ($1, $2, '', '', '', '', '', '', '', '', '', '', $3)
		ON CONFLICT (event_id) DO NOTHING
	`, a.eventID, a.detail, now); err != nil {
		return fmt.Errorf("insert alarm_event: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO alarm_summary (alarm_id, event_id, alarm_code, level, state, application, domain, environment, create_time, clear_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, '')
		ON CONFLICT (alarm_id) DO UPDATE SET state = EXCLUDED.state
	`, a.alarmID, a.eventID, a.alarmCode, a.level, a.state, a.application, a.domain, a.env, now); err != nil {
		return fmt.Errorf("insert alarm_summary: %w", err)
	}

	return tx.Commit(ctx)
}

func cleanSeeded(ctx context.Context, pool *pgxpool.Pool) error {
	ids := make([]int64, 0, len(sampleAlarms))
	for _, a := range sampleAlarms {
		ids = append(ids, a.alarmID)
	}
	if _, err := pool.Exec(ctx, `DELETE FROM sync_status WHERE alarm_id = ANY($1)`, ids); err != nil {
		return fmt.Errorf("delete sync_status: %w", err)
	}
	if _, err := pool.Exec(ctx, `DELETE FROM alarm_summary WHERE alarm_id = ANY($1)`, ids); err != nil {
		return fmt.Errorf("delete alarm_summary: %w", err)
	}
	return nil
}
