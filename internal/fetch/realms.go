package fetch

import (
	"context"
	"fmt"
	"regexp"

	"auctionflow/logger"
)

var realmIDPattern = regexp.MustCompile(`/connected-realm/(\d+)\?`)

type connectedRealmIndex struct {
	ConnectedRealms []struct {
		Href string `json:"href"`
	} `json:"connected_realms"`
}

// ConnectedRealmIDs fetches the connected-realm index and returns the realm
// ids extracted from each entry's href. Entries whose href does not match
// the expected shape are logged and skipped.
func (c *Client) ConnectedRealmIDs(ctx context.Context) ([]string, error) {
	url := fmt.Sprintf("%s/data/wow/connected-realm/?namespace=%s",
		c.source.APIBaseURL, c.source.Namespace)

	var index connectedRealmIndex
	if err := c.GetJSON(ctx, url, &index); err != nil {
		return nil, fmt.Errorf("fetch connected realm index: %w", err)
	}

	ids := make([]string, 0, len(index.ConnectedRealms))
	for _, realm := range index.ConnectedRealms {
		id := extractRealmID(realm.Href)
		if id == "" {
			c.log.WithComponent("fetch").WithFields(logger.Fields{
				"href": realm.Href,
			}).Warn("could not extract realm id from href")
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// extractRealmID pulls the realm id out of an index href of the form
// .../connected-realm/1080?namespace=dynamic-eu.
func extractRealmID(href string) string {
	m := realmIDPattern.FindStringSubmatch(href)
	if m == nil {
		return ""
	}
	return m[1]
}
