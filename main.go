// ════════════════════════════════════════════════════════════════════════════════════════════════
// OUCH Packet Counter — Demonstration Entry Point
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Event Pipeline Framework
// Component: Demo Orchestration
//
// Description:
//   Stands up one assembly around a single ether: a synthetic OUCH feed, a
//   per-type packet counter, and a burst guard, all on one dispatcher
//   (pinned to --core, or to the first isolated core when one exists). Instruments come from a SQLite reference database when one
//   is supplied; configuration comes from a HuJSON file.
//
// Phases:
//   - Phase 0: flags, configuration, instrument universe
//   - Phase 1: assembly construction (storage + compartments)
//   - Phase 2: run until signal or --duration elapses
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package main

import (
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	_ "github.com/mattn/go-sqlite3"

	"main/assembly"
	"main/debug"
	"main/dispatch"
	"main/ether"
	"main/utils"
)

// Instrument is one tradable from the reference database.
type Instrument struct {
	ID     uint32
	Symbol string
}

// Token derives a demo order token from the instrument symbol and a
// sequence number.
func (in Instrument) Token(seq uint64) [14]byte {
	var tok [14]byte
	copy(tok[:], in.Symbol)
	n := utils.Utoa64(seq % 1_000_000)
	copy(tok[14-len(n):], n)
	return tok
}

func main() {
	configPath := pflag.String("config", "", "HuJSON configuration file")
	dbPath := pflag.String("instruments", "", "SQLite reference database")
	duration := pflag.Duration("duration", 0, "run time; 0 = until signal")
	core := pflag.Int("core", -1, "pin the dispatcher to this core; -1 = auto")
	pflag.Parse()

	// PHASE 0: configuration and reference data
	debug.DropMessage("INIT", "loading configuration")
	ctx, err := assembly.NewContext("ouch-counter", *configPath)
	if err != nil {
		debug.DropError("CONFIG", err)
		os.Exit(1)
	}

	instrs := loadInstruments(*dbPath)
	debug.DropMessage("LOADED", utils.Itoa(len(instrs))+" instruments")

	pin := *core
	if pin < 0 {
		if isolated := dispatch.IsolatedCores(); len(isolated) > 0 {
			pin = isolated[0]
			debug.DropMessage("PIN", "using isolated core "+utils.Itoa(pin))
		}
	}

	// PHASE 1: assembly construction
	feed := ether.New("OuchFeed", OuchSchema(), 1<<12)
	_, sharedOK := ctx.Config.Ethers["OuchFeed"]
	asm, err := assembly.NewAssembly(ctx, assembly.CompartmentSpec{
		Ether:  feed,
		Shared: sharedOK,
		Build: func(ctx *assembly.Context, asm *assembly.Assembly, e *ether.Ether) (assembly.Compartment, error) {
			return &ouchCompartment{
				BaseCompartment: assembly.NewBaseCompartment("OuchCompartment"),
				ctx:             ctx,
				asm:             asm,
				ether:           e,
				instrs:          instrs,
				core:            pin,
			}, nil
		},
	})
	if err != nil {
		debug.DropError("ASSEMBLY", err)
		os.Exit(1)
	}
	defer asm.Close()

	if err := asm.Initialize(); err != nil {
		debug.DropError("ASSEMBLY init", err)
		os.Exit(1)
	}

	// PHASE 2: run
	asm.Start()
	debug.DropMessage("READY", "assembly running")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	if *duration > 0 {
		select {
		case <-sig:
		case <-time.After(*duration):
		}
	} else {
		<-sig
	}

	debug.DropMessage("SHUTDOWN", "stopping assembly")
	asm.Stop()
}

// loadInstruments reads the instrument universe from SQLite, falling back
// to a small built-in set when no database is supplied.
func loadInstruments(path string) []Instrument {
	if path == "" {
		return builtinInstruments()
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		debug.DropError("SQLITE open", err)
		return builtinInstruments()
	}
	defer db.Close()

	rows, err := db.Query("SELECT id, symbol FROM instruments ORDER BY id")
	if err != nil {
		debug.DropError("SQLITE query", err)
		return builtinInstruments()
	}
	defer rows.Close()

	var out []Instrument
	for rows.Next() {
		var in Instrument
		if err := rows.Scan(&in.ID, &in.Symbol); err != nil {
			debug.DropError("SQLITE scan", err)
			continue
		}
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		debug.DropError("SQLITE rows", err)
	}
	if len(out) == 0 {
		return builtinInstruments()
	}
	return out
}

func builtinInstruments() []Instrument {
	return []Instrument{
		{ID: 1, Symbol: "AAPL"},
		{ID: 2, Symbol: "MSFT"},
		{ID: 3, Symbol: "NVDA"},
		{ID: 4, Symbol: "SPY"},
	}
}
