package testutil

import (
	"time"

	"github.com/coprede/sir-dashboard/internal/domain/incident"
)

// FixtureTime is the FetchedAt of SampleSnapshot.
var FixtureTime = time.Date(2026, 1, 12, 14, 15, 0, 0, time.UTC)

// SampleRAL has two clusters: RJO holds one critical swap, BHE none.
func SampleRAL() incident.Dataset {
	items := []incident.IncidentRecord{
		{Cluster: "RJO", Region: "NITEROI", Type: "BACKBONE", Description: "SWAP DE PLACA OTN", Duration: "31d.04h12m", Code: "RJO-001", Date: "11/12/2025 - 10:03"},
		{Cluster: "RJO", Region: "RIO DE JANEIRO", Type: "ACESSO", Description: "Falha de energia", Duration: "0d.02h30m", Code: "RJO-002", Date: "12/01/2026 - 11:45"},
		{Cluster: "BHE", Region: "CONTAGEM", Type: "BACKBONE", Description: "rup cabo rodovia", Duration: "0d.04h00m", Code: "BHE-001", Date: "12/01/2026 - 10:15"},
		{Cluster: "", Region: "", Type: "N/A", Description: "sem cadastro", Duration: "N/A", Code: "XYZ-999", Date: "N/A"},
	}
	return incident.Dataset{Name: incident.DatasetRAL, Total: len(items) + 1, Items: items}
}

// SampleREC has a single cluster with one record.
func SampleREC() incident.Dataset {
	items := []incident.IncidentRecord{
		{Cluster: "SPO", Region: "CAMPINAS", Type: "CLIENTE X", Description: "Recorrencia de swap", Code: "SPO-010", Date: "10/01/2026 - 08:00"},
	}
	return incident.Dataset{Name: incident.DatasetREC, Total: len(items), Items: items}
}

// SampleSnapshot returns a fresh snapshot built from SampleRAL and SampleREC.
func SampleSnapshot() *incident.Snapshot {
	return &incident.Snapshot{
		ID:        "snap-fixture",
		UpdatedAt: "12/01/2026 11:15",
		FetchedAt: FixtureTime,
		Source:    "fixture",
		RAL:       SampleRAL(),
		REC:       SampleREC(),
	}
}
