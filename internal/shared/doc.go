// Package shared holds helpers used across packages. Its testutil
// subpackage provides a capturing slog handler so tests can assert on
// structured log events:
//
//	logger, handler := testutil.NewTestLogger(t)
//	normalizer := dataprocessing.NewNormalizer(geography.NewResolver(), logger)
//	...
//	testutil.AssertLogContains(t, handler, slog.LevelWarn, "unmappable_geography")
package shared
