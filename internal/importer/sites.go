// Package importer loads the study registry and subject lists that every
// other stage reads.
package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/mwantia/phoenix-tracker/pkg/db/models"
	"github.com/mwantia/phoenix-tracker/pkg/log"
)

// Site is one entry of the sites file.
type Site struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Country     string `json:"country"`
	CountryCode string `json:"country_code"`
	Network     string `json:"network"`
}

// SiteStore receives networks and studies.
type SiteStore interface {
	UpsertNetwork(ctx context.Context, network *models.Network) error
	UpsertStudy(ctx context.Context, study *models.Study) error
}

type SitesResult struct {
	Networks int
	Studies  int
	Skipped  int
}

// ImportSites reads a JSON array of sites. Networks are written before the
// studies referencing them; entries without an id or network are skipped.
func ImportSites(ctx context.Context, st SiteStore, r io.Reader, logger log.LoggerService) (SitesResult, error) {
	var sites []Site
	if err := json.NewDecoder(r).Decode(&sites); err != nil {
		return SitesResult{}, fmt.Errorf("failed to decode sites: %w", err)
	}

	result := SitesResult{}
	networks := make(map[string]bool)
	var studies []models.Study

	for _, site := range sites {
		if site.ID == "" || site.Network == "" {
			logger.Warn("Skipping site %q without id or network", site.Name)
			result.Skipped++
			continue
		}

		networks[site.Network] = true
		studies = append(studies, models.Study{
			StudyID:          site.ID,
			StudyName:        site.Name,
			StudyCountry:     site.Country,
			StudyCountryCode: site.CountryCode,
			NetworkID:        site.Network,
		})
	}

	for id := range networks {
		if err := st.UpsertNetwork(ctx, &models.Network{NetworkID: id}); err != nil {
			return result, fmt.Errorf("failed to write network %s: %w", id, err)
		}
		result.Networks++
	}

	for i := range studies {
		if err := st.UpsertStudy(ctx, &studies[i]); err != nil {
			return result, fmt.Errorf("failed to write study %s: %w", studies[i].StudyID, err)
		}
		result.Studies++
	}

	logger.Info("Imported %d networks and %d studies", result.Networks, result.Studies)
	return result, nil
}
