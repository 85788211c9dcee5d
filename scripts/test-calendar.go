package main

import (
	"fmt"
	"os"
	"time"

	"github.com/pfrederiksen/geop-sync/internal/calendar"
	"github.com/pfrederiksen/geop-sync/internal/lesson"
)

func main() {
	// A sample week as the portal returns it
	raws := []lesson.Raw{
		{
			ID:      "1001",
			Title:   "UFS02 - Reti",
			Tooltip: "PRESENTE<br>Materia: UFS02 - Reti<br>Docente: Rossi<br>Aula: 101<br>Modalità: Fad",
			Start:   "2025-03-25T08:40:00",
			End:     "2025-03-25T12:40:00",
		},
		{
			ID:      "1002",
			Title:   "UFT01 - Sicurezza",
			Tooltip: "Registro lezione da compilare<br>Materia: UFT01 - Sicurezza<br>Docente: Bianchi<br>Aula: Lab 2",
			Start:   "2025-03-26T14:00:00",
			End:     "2025-03-26T17:40:00",
		},
	}

	loc, err := time.LoadLocation(calendar.DefaultTimeZone)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading time zone: %v\n", err)
		os.Exit(1)
	}

	lessons, _ := lesson.Parse(raws)
	icsContent, omitted := calendar.GenerateICS(lessons, loc, time.Now())

	// Write to file (owner read/write only)
	filename := "test-geop-lessons.ics"
	if err := os.WriteFile(filename, []byte(icsContent), 0600); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated calendar file: %s (%d lessons, %d omitted)\n\n", filename, len(lessons)-omitted, omitted)
	fmt.Println("Test it by:")
	fmt.Println("1. Open the .ics file with your calendar app")
	fmt.Println("2. Or import it into Google Calendar, Apple Calendar, or Outlook")
	fmt.Println("\nFile contents preview:")
	fmt.Println("---")
	fmt.Println(icsContent)
}
