// Package storage provides JSON-based persistence for lesson snapshots.
//
// Every sync cycle writes the lessons parsed from the portal to a single
// snapshot document (calendar.json) in the data directory, and the rest of the
// cycle reads them back from there. The previous snapshot is kept in memory
// long enough to report what changed since the last run. The default storage
// location is ~/.local/share/geop-sync/.
package storage
