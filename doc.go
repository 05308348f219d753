// Package langtest is a model-evaluation harness for NLP tasks. It
// generates perturbed test cases from a reference dataset, runs a model
// adapter over them, judges the outputs with task-aware evaluators and
// aggregates per-test pass rates against configured minimums.
//
// # Pipeline
//
// A Harness owns one run over one model, task and dataset. Samples move
// through four explicit stages:
//
//	generate  perturb each record once per enabled test
//	run       invoke the model adapter on the perturbed inputs
//	evaluate  judge actual outputs (invariance, accuracy, representation)
//	report    aggregate pass rates per (category, test)
//
// Failures are isolated per sample: a model error on one input marks
// that sample FAILED and appears in the report's error counts without
// stopping the run.
//
// # Quick start
//
//	records, err := dataset.Load("dev.conll", sample.TaskNER)
//	cfg, err := langtest.LoadConfig("tests.yaml")
//	h, err := langtest.New(sample.TaskNER, records, adapter, cfg,
//		langtest.WithModelName("ner-bert-base"),
//		langtest.WithSeed(42),
//	)
//	rep, err := h.Execute(ctx)
//	for _, e := range rep.Entries {
//		fmt.Printf("%s/%s: %.2f (min %.2f) pass=%v\n",
//			e.Category, e.TestName, e.PassRate, e.MinPassRate, e.Pass)
//	}
//
// The adapter is the only model-facing contract; see the model package
// for the HTTP/JSON adapter and registry-backed endpoint discovery.
// Prediction caching (cache), Postgres persistence (store) and
// OpenTelemetry instrumentation are optional and wired through Options.
//
// # Reproducibility
//
// All generation randomness derives from the configured seed and the
// (test, record) identity, never from worker scheduling. Two harnesses
// with the same config, dataset and seed produce byte-identical test
// cases.
package langtest
