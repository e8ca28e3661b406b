package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/2beens/fitstreak/internal/catalog"

	log "github.com/sirupsen/logrus"
)

// catalog_check validates a plan catalog before it is deployed or reloaded.
func main() {
	path := flag.String("path", "", "catalog TOML file")
	url := flag.String("url", "", "catalog URL, used when -path is empty")
	verbose := flag.Bool("v", false, "print every plan day")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	source := catalog.Source{
		Path:       *path,
		URL:        *url,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
	c, err := source.Load(ctx)
	if err != nil {
		log.Errorf("catalog invalid: %s", err)
		os.Exit(1)
	}

	for _, p := range c.SortedPlans() {
		fmt.Printf("plan %d [%s] %q: %d days, schedule %s, %d days defined\n",
			p.ID, p.Kind, p.Title, p.DurationDays, p.Schedule, len(p.Days))
		if !*verbose {
			continue
		}
		for _, d := range p.Days {
			ref := catalog.DayRef{Weekday: d.Weekday, Index: d.Index}
			fmt.Printf("  day %s %q: %d exercises (%d kcal), %d meals\n",
				ref, d.Label, len(d.Exercises), d.TotalCalories(), len(d.Meals))
		}
	}
	fmt.Println("catalog ok")
}
