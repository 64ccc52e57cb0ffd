package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"finch/internal/gcprof"
	"finch/internal/heapmon"
	"finch/internal/vm"
)

// runStress drives a VM heap through allocation churn so collection
// behavior can be observed. A bounded live set is retained through a core
// module variable; everything else becomes garbage.
func runStress(args []string, monitor bool) error {
	flags := flag.NewFlagSet("stress", flag.ExitOnError)
	iterations := flags.Int("iterations", 200000, "allocation rounds to run")
	retain := flags.Int("retain", 4096, "size of the retained live set")
	minHeap := flags.Int("min-heap", 1024*1024, "minimum heap size in bytes")
	growth := flags.Int("growth", 150, "heap growth percent")
	statsDB := flags.String("stats-db", "", "record per-collection stats to this SQLite database")
	addr := flags.String("addr", "127.0.0.1:7373", "monitor listen address (monitor command)")
	verbose := flags.Bool("v", false, "log each collection")
	if err := flags.Parse(args); err != nil {
		return err
	}

	logger := zap.NewNop()
	if *verbose {
		var err error
		logger, err = zap.NewDevelopment()
		if err != nil {
			return errors.Wrap(err, "create logger")
		}
		defer logger.Sync()
	}

	config := vm.DefaultConfig()
	config.MinHeapSize = *minHeap
	config.HeapGrowthPercent = *growth
	config.Logger = logger

	var recorder *gcprof.SQLiteRecorder
	var server *heapmon.Server
	switch {
	case monitor:
		server = heapmon.NewServer(*addr, logger)
		go func() {
			if err := server.Start(); err != nil {
				logger.Error("monitor server failed", zap.Error(err))
			}
		}()
		defer server.Close()
		config.Recorder = server
	case *statsDB != "":
		var err error
		recorder, err = gcprof.NewSQLiteRecorder(*statsDB, logger)
		if err != nil {
			return err
		}
		defer recorder.Close()
		config.Recorder = recorder
	}

	machine := vm.NewVM(config)
	core := machine.InitCoreClasses()

	// The retained list is reachable through the core module, so it and
	// everything it holds survives every collection.
	retained := machine.NewList(0)
	machine.DefineVariable(core, "retained", vm.ObjValue(retained))

	started := time.Now()
	churn(machine, retained, *iterations, *retain)
	elapsed := time.Since(started)

	fmt.Printf("%sdone%s in %v\n", colorGreen(), colorReset(), elapsed.Round(time.Millisecond))
	fmt.Printf("  collections:  %d\n", machine.Collections())
	fmt.Printf("  live heap:    %s\n", humanize.Bytes(uint64(machine.BytesAllocated())))
	fmt.Printf("  next GC at:   %s\n", humanize.Bytes(uint64(machine.NextGC())))

	if recorder != nil {
		summary, err := recorder.Summarize()
		if err != nil {
			return err
		}
		fmt.Printf("  recorded:     %d collections, %d objects freed, max pause %v (session %s)\n",
			summary.Collections, summary.ObjectsFreed,
			time.Duration(summary.MaxPauseNs), recorder.Session())
	}
	return nil
}

// churn allocates strings, lists, maps, and ranges. Roughly one value per
// round lands in the retained set (evicting an old one once the set is
// full); the rest is garbage by the end of each round.
func churn(machine *vm.VM, retained *vm.ObjList, iterations, retain int) {
	for i := 0; i < iterations; i++ {
		key := machine.NumToString(float64(i))
		machine.PushRoot(key.AsObj())

		scratch := machine.NewMap()
		machine.PushRoot(scratch)

		// Values have to be rooted across MapSet: growing the entry
		// array can collect.
		r := machine.NewRange(0, float64(i), true)
		machine.PushRoot(r.AsObj())
		machine.MapSet(scratch, key, r)
		machine.PopRoot()

		tag := machine.StringFormat("#@", key)
		machine.PushRoot(tag.AsObj())
		machine.MapSet(scratch, vm.NumValue(float64(i)), tag)
		machine.PopRoot()

		list := machine.NewList(8)
		machine.PushRoot(list)
		for j := 0; j < 8; j++ {
			list.Elements.Data[j] = vm.NumValue(float64(i * j))
		}

		if retained.Elements.Count >= retain {
			machine.ListRemoveAt(retained, i%retain)
		}
		machine.ListInsert(retained, vm.ObjValue(list), retained.Elements.Count)

		machine.PopRoot()
		machine.PopRoot()
		machine.PopRoot()
	}
}
