// Command elder runs a headless elder-device agent against the relay. It
// keeps the local sqlite store, answers guardian commands through the
// dispatcher, and exposes a small console for raising alerts and answering
// consent prompts, standing in for the launcher UI.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/ggokuldas06/senior-launcher-sub001/internal/client"
	"github.com/ggokuldas06/senior-launcher-sub001/internal/elder"
	"github.com/ggokuldas06/senior-launcher-sub001/internal/model"
	"github.com/ggokuldas06/senior-launcher-sub001/internal/protocol"
)

func main() {
	_ = godotenv.Load()

	elderID := os.Getenv("ELDER_ID")
	if elderID == "" {
		log.Fatal("missing required env var: ELDER_ID")
	}
	relayURL := envOr("RELAY_URL", "ws://localhost:8080/ws")
	dbPath := envOr("SQLITE_PATH", "elder.db")
	elderName := envOr("ELDER_NAME", "Elder")
	var elderAge *int
	if s := os.Getenv("ELDER_AGE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			elderAge = &n
		}
	}

	store, err := elder.NewSQLiteStore(dbPath)
	if err != nil {
		log.Fatalf("sqlite: %v", err)
	}
	defer store.Close()

	var battery atomic.Int64
	battery.Store(100)

	console := &console{}

	var cli *client.Client
	dispatcher := elder.NewDispatcher(elder.DispatcherConfig{
		DeviceID:  elderID,
		ElderName: elderName,
		ElderAge:  elderAge,
		Store:     store,
		Confirmer: console,
		Notifier:  console,
		Send:      func(env protocol.Envelope) error { return cli.Send(env) },
		Battery:   func() int { return int(battery.Load()) },
	})

	cli, err = client.New(client.Options{
		URL:      relayURL,
		DeviceID: elderID,
		Role:     protocol.RoleElder,
		Handler: func(ctx context.Context, env protocol.Envelope) {
			switch env.Type {
			case protocol.TypeGuardianPaired:
				var p protocol.GuardianPairedPayload
				if protocol.DecodePayload(env, &p) == nil {
					log.Printf("paired with guardian %s (%s)", p.GuardianName, p.GuardianID)
				}
			case protocol.TypeGuardianUnpaired:
				var p protocol.GuardianUnpairedPayload
				if protocol.DecodePayload(env, &p) == nil {
					log.Printf("guardian %s unpaired", p.GuardianID)
				}
			default:
				dispatcher.Handle(ctx, env)
			}
		},
		OnConnect: func() { log.Printf("connected to relay as %s", elderID) },
	})
	if err != nil {
		log.Fatalf("client: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cli.Start(ctx)
	defer cli.Close()

	go readConsole(ctx, console, cli, store, elderID, &battery)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Printf("shutting down")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// console implements the dispatcher's Confirmer and Notifier over stdio.
// While a consent prompt is open, the next typed line answers it instead of
// being treated as a command.
type console struct {
	mu    sync.Mutex
	await chan string
}

func (c *console) Confirm(ctx context.Context, req elder.ConsentRequest) (bool, error) {
	ch := make(chan string, 1)
	c.mu.Lock()
	c.await = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.await = nil
		c.mu.Unlock()
	}()

	fmt.Printf("\n>>> %s\n>>> Allow? [y/N]: ", req.Summary)
	select {
	case line := <-ch:
		return strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "y"), nil
	case <-ctx.Done():
		fmt.Println("\n>>> request expired")
		return false, ctx.Err()
	}
}

// consume routes a typed line to an open consent prompt, if any.
func (c *console) consume(line string) bool {
	c.mu.Lock()
	ch := c.await
	c.mu.Unlock()
	if ch == nil {
		return false
	}
	select {
	case ch <- line:
	default:
	}
	return true
}

func (c *console) ShowReminder(title, message, priority string) error {
	fmt.Printf("\n[reminder/%s] %s: %s\n", priority, title, message)
	return nil
}

func (c *console) ShowMessage(from, message string, requiresAck bool) error {
	suffix := ""
	if requiresAck {
		suffix = " (please acknowledge)"
	}
	fmt.Printf("\n[message] %s: %s%s\n", from, message, suffix)
	return nil
}

// readConsole drives the interactive loop: sos, checkin <mood 1-5>,
// battery <pct>, resolve <alertId>, quit.
func readConsole(ctx context.Context, con *console, cli *client.Client, store elder.Store, elderID string, battery *atomic.Int64) {
	fmt.Println("commands: sos | checkin <mood 1-5> | battery <pct> | resolve <alertId> | quit")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if con.consume(line) {
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "sos":
			raiseAlert(ctx, cli, store, elderID, "SOS", int(battery.Load()))
		case "checkin":
			mood := 3
			if len(fields) > 1 {
				if n, err := strconv.Atoi(fields[1]); err == nil && n >= 1 && n <= 5 {
					mood = n
				}
			}
			saveCheckIn(ctx, store, elderID, mood)
		case "battery":
			if len(fields) > 1 {
				if n, err := strconv.Atoi(fields[1]); err == nil && n >= 0 && n <= 100 {
					battery.Store(int64(n))
					fmt.Printf("battery set to %d%%\n", n)
					if n <= 15 {
						raiseAlert(ctx, cli, store, elderID, "LOW_BATTERY", n)
					}
				}
			}
		case "resolve":
			if len(fields) > 1 {
				resolveAlert(ctx, cli, store, fields[1])
			}
		case "quit", "exit":
			p, _ := os.FindProcess(os.Getpid())
			_ = p.Signal(syscall.SIGTERM)
			return
		default:
			fmt.Printf("unknown command %q\n", fields[0])
		}
	}
}

// raiseAlert persists the alert locally, then pushes it to the relay for
// fan-out. Local persistence comes first so GET_ALERT_HISTORY sees the alert
// even if the push is lost.
func raiseAlert(ctx context.Context, cli *client.Client, store elder.Store, elderID, alertType string, batteryLevel int) {
	alert := model.AlertEvent{
		ID:           "alert_" + uuid.NewString(),
		ElderID:      elderID,
		Type:         alertType,
		TriggeredAt:  time.Now().UTC(),
		BatteryLevel: &batteryLevel,
	}
	if err := store.SaveAlert(ctx, alert); err != nil {
		log.Printf("save alert: %v", err)
		return
	}
	pushAlert(cli, alert)
	fmt.Printf("alert %s raised (%s)\n", alert.ID, alertType)
}

// resolveAlert re-pushes an existing alert id with Resolved set.
func resolveAlert(ctx context.Context, cli *client.Client, store elder.Store, alertID string) {
	alerts, err := store.RecentAlerts(ctx, 100)
	if err != nil {
		log.Printf("load alerts: %v", err)
		return
	}
	for _, a := range alerts {
		if a.ID != alertID {
			continue
		}
		a.Resolved = true
		if err := store.SaveAlert(ctx, a); err != nil {
			log.Printf("save alert: %v", err)
			return
		}
		pushAlert(cli, a)
		fmt.Printf("alert %s resolved\n", alertID)
		return
	}
	fmt.Printf("no alert %s\n", alertID)
}

func pushAlert(cli *client.Client, alert model.AlertEvent) {
	info := protocol.AlertInfo{
		ID:           alert.ID,
		ElderID:      alert.ElderID,
		Type:         alert.Type,
		TriggeredAt:  alert.TriggeredAt.Format(time.RFC3339),
		BatteryLevel: alert.BatteryLevel,
		Resolved:     alert.Resolved,
		Notes:        alert.Notes,
	}
	if alert.Latitude != nil && alert.Longitude != nil {
		info.Location = &protocol.LocationInfo{Latitude: *alert.Latitude, Longitude: *alert.Longitude}
	}
	env, err := protocol.NewEnvelope(protocol.TypeAlertEvent, alert.ElderID, "guardians", protocol.NewRequestID(), info)
	if err != nil {
		log.Printf("encode alert: %v", err)
		return
	}
	if err := cli.Send(env); err != nil {
		log.Printf("push alert: %v (guardians will see it via history)", err)
	}
}

func saveCheckIn(ctx context.Context, store elder.Store, elderID string, mood int) {
	checkIn := model.HealthCheckIn{
		ID:        "chk_" + uuid.NewString(),
		ElderID:   elderID,
		Date:      time.Now().UTC().Format("2006-01-02"),
		Mood:      &mood,
		CreatedAt: time.Now().UTC(),
	}
	if err := store.SaveHealthCheckIn(ctx, checkIn); err != nil {
		log.Printf("save check-in: %v", err)
		return
	}
	fmt.Printf("check-in recorded (mood %d)\n", mood)
}
