package main

import (
	"os"

	"fleetsim/internal/sim"
	"fleetsim/internal/store"
)

// newSampleWriter assembles the flush sink: the SQLite store always receives
// samples; a GreptimeDB mirror, a JSONL export, and a stdout printer are
// layered on via MultiWriter when enabled. It returns a cleanup function to
// close any resources.
func newSampleWriter(st *store.Store, printOnly bool, logFile string) (sim.SampleWriter, func(), error) {
	cleanup := func() {}
	writers := []sim.SampleWriter{st}

	if endpoint := os.Getenv("GREPTIMEDB_ENDPOINT"); endpoint != "" {
		gw, err := sim.NewGreptimeWriter(endpoint, greptimeDatabase())
		if err != nil {
			return nil, nil, err
		}
		writers = append(writers, gw)
	}

	if logFile != "" {
		fw, err := sim.NewFileWriter(logFile)
		if err != nil {
			return nil, nil, err
		}
		writers = append(writers, fw)
		cleanup = func() { fw.Close() }
	}

	if printOnly {
		writers = append(writers, sim.NewStdoutWriter())
	}

	if len(writers) == 1 {
		return writers[0], cleanup, nil
	}
	return sim.NewMultiWriter(writers...), cleanup, nil
}

func greptimeDatabase() string {
	if db := os.Getenv("GREPTIMEDB_DATABASE"); db != "" {
		return db
	}
	return "public"
}
