// Package beamdec provides a beam-pruned token-passing Viterbi decoder.
//
// A Decoder searches a weighted finite-state graph (see package fst) for the
// cheapest path consistent with a sequence of per-frame acoustic costs (see
// package decodable). Each frame, live hypotheses ("tokens") are pruned to a
// beam around the best one, bounded by MaxActive and MinActive, and pushed
// across the graph's emitting arcs; the survivors are then closed over the
// non-emitting (epsilon-input) arcs.
//
// # Quick Start
//
//	graph, _ := fst.Read(f)
//	scores, _ := decodable.ReadMatrix(r)
//
//	dec, _ := beamdec.New(graph, beamdec.DefaultOptions())
//	defer dec.Close()
//
//	_ = dec.Decode(ctx, scores)
//	path, ok := dec.BestPath(true)
//
// # Incremental Decoding
//
// Frames may be fed as they become available. Advancing one frame at a time
// yields exactly the same hypotheses as decoding all frames at once:
//
//	dec.Initialize()
//	for frame := range frames {
//	    online.AcceptFrame(frame)
//	    dec.Advance(ctx, online, -1)
//	}
//	online.InputFinished()
//
// # Options
//
// Options can be built in code or loaded from YAML:
//
//	opts, _ := beamdec.LoadOptions("decode.yaml")
//	dec, _ := beamdec.New(graph, opts,
//	    beamdec.WithLogger(beamdec.NewJSONLogger(slog.LevelDebug)),
//	    beamdec.WithMetricsCollector(observability.NewPrometheusCollector(reg, "asr")),
//	)
//
// # Memory
//
// Tokens live in a pooled arena and are reference counted: a token stays alive
// while it is active or while a later token points back to it. Dropped
// hypotheses are reclaimed immediately, so memory tracks the number of
// distinct surviving path prefixes rather than the utterance length.
//
// A Decoder is not safe for concurrent use. Graphs are read-only and may be
// shared by any number of decoders.
package beamdec
