// guard-cli — просмотр журнала правок и живых событий конвейера.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/annel0/packetguard/internal/eventbus"
	"github.com/annel0/packetguard/internal/storage"
)

const timeFormat = "2006-01-02T15:04:05Z"

func main() {
	var (
		dbPath  = flag.String("db", "data/journal", "каталог badger с журналом правок")
		natsURL = flag.String("nats", "nats://127.0.0.1:4222", "адрес NATS для follow")
		stream  = flag.String("stream", "PACKETGUARD", "имя JetStream стрима")
		command = flag.String("cmd", "tail", "Command: tail, stats, follow")
		kinds   = flag.String("kinds", "", "фильтр: типы правок или событий (через запятую)")
		player  = flag.Int("player", -1, "фильтр: индекс соединения")
		from    = flag.Uint64("from", 1, "номер первой записи журнала")
		since   = flag.String("since", "", "только записи не старше (1h, 30m или "+timeFormat+")")
		limit   = flag.Int("limit", 100, "максимум записей")
	)
	flag.Parse()

	opts := filterOptions{Kinds: parseStringList(*kinds), Player: *player}
	if *since != "" {
		t, err := parseSinceTime(*since, time.Now())
		if err != nil {
			log.Fatalf("❌ Invalid since: %v", err)
		}
		opts.Since = t
	}

	var err error
	switch *command {
	case "tail":
		err = withJournal(*dbPath, func(j *storage.EditJournal) error { return tailJournal(j, *from, *limit, opts) })
	case "stats":
		err = withJournal(*dbPath, func(j *storage.EditJournal) error { return showStats(j, *from, opts) })
	case "follow":
		err = follow(*natsURL, *stream, opts)
	default:
		fmt.Printf("❌ Unknown command: %s\n", *command)
		fmt.Println("Available commands: tail, stats, follow")
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("❌ %s failed: %v", *command, err)
	}
}

type filterOptions struct {
	Kinds  []string
	Player int
	Since  time.Time
}

func (o filterOptions) match(e storage.JournalEntry) bool {
	if len(o.Kinds) > 0 && !slices.Contains(o.Kinds, e.Kind) {
		return false
	}
	if o.Player >= 0 && e.Player != o.Player {
		return false
	}
	return o.Since.IsZero() || !e.At.Before(o.Since)
}

func withJournal(path string, fn func(j *storage.EditJournal) error) error {
	db, err := storage.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()
	j, err := storage.NewEditJournal(db)
	if err != nil {
		return err
	}
	return fn(j)
}

// tailJournal выводит записи журнала по порядку коммита.
func tailJournal(j *storage.EditJournal, from uint64, limit int, opts filterOptions) error {
	fmt.Printf("🧱 Journal from #%d (last #%d, limit %d)\n", from, j.Last(), limit)

	printed := 0
	for printed < limit {
		batch, err := j.Since(context.Background(), from, 256)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			break
		}
		for _, e := range batch {
			from = e.Seq + 1
			if !opts.match(e) {
				continue
			}
			printEntry(e)
			if printed++; printed >= limit {
				break
			}
		}
	}

	fmt.Printf("\n📊 Total entries: %d\n", printed)
	return nil
}

// showStats считает правки по типам и соединениям.
func showStats(j *storage.EditJournal, from uint64, opts filterOptions) error {
	byKind := map[string]int{}
	byPlayer := map[int]int{}
	total := 0
	for {
		batch, err := j.Since(context.Background(), from, 1024)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			break
		}
		for _, e := range batch {
			from = e.Seq + 1
			if !opts.match(e) {
				continue
			}
			byKind[e.Kind]++
			byPlayer[e.Player]++
			total++
		}
	}

	fmt.Println("📊 Edit statistics")
	fmt.Printf("Total edits: %d\n", total)
	fmt.Println("\nBy kind:")
	for _, k := range sortedKeys(byKind) {
		fmt.Printf("  %s: %d\n", k, byKind[k])
	}
	fmt.Println("\nBy connection:")
	players := make([]int, 0, len(byPlayer))
	for p := range byPlayer {
		players = append(players, p)
	}
	sort.Ints(players)
	for _, p := range players {
		fmt.Printf("  #%d: %d\n", p, byPlayer[p])
	}
	return nil
}

// follow печатает события шины, пока не придет SIGINT.
func follow(url, stream string, opts filterOptions) error {
	bus, err := eventbus.NewJetStreamBus(url, stream, 24*time.Hour)
	if err != nil {
		return err
	}
	defer bus.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sub, err := bus.Subscribe(ctx, eventbus.Filter{Types: opts.Kinds}, func(ctx context.Context, ev *eventbus.Envelope) {
		fields, err := ev.Fields()
		if err != nil {
			fmt.Printf("[%s] %s: %v\n", ev.Timestamp.Format("15:04:05"), ev.EventType, err)
			return
		}
		if idx, ok := fields["player"].(float64); ok && opts.Player >= 0 && int(idx) != opts.Player {
			return
		}
		fmt.Printf("[%s] %s [%s] %s %v\n", ev.Timestamp.Format("15:04:05"), ev.Source, ev.EventType, ev.ID, fields)
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	fmt.Printf("🎬 Following %s (Ctrl+C to stop)\n", stream)
	<-ctx.Done()
	return nil
}

func printEntry(e storage.JournalEntry) {
	who := fmt.Sprintf("#%d", e.Player)
	if e.Account != "" {
		who += " " + e.Account
	}
	fmt.Printf("[%s] %6d %-10s (%d,%d) %s type %d→%d active %v→%v\n",
		e.At.Format("15:04:05"), e.Seq, e.Kind, e.Pos.X, e.Pos.Y, who,
		e.Before.Type, e.After.Type, e.Before.Active, e.After.Active)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// parseStringList парсит строку с разделителями-запятыми
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// parseSinceTime парсит относительное время типа "1h", "30m" или абсолютное
func parseSinceTime(since string, from time.Time) (time.Time, error) {
	duration, err := time.ParseDuration(since)
	if err != nil {
		return time.Parse(timeFormat, since)
	}
	return from.Add(-duration), nil
}
