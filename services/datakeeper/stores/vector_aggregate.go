// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package stores

import (
	"encoding/json"
	"fmt"

	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

// graphqlMetaCount builds the { meta { count } } aggregate field.
func graphqlMetaCount() graphql.Field {
	return graphql.Field{
		Name:   "meta",
		Fields: []graphql.Field{{Name: "count"}},
	}
}

// parseAggregateCount walks the nested Aggregate response for the
// meta.count value of one class. The response shape is
// {"Aggregate": {"<Class>": [{"meta": {"count": N}}]}}.
func parseAggregateCount(data map[string]models.JSONObject, class string) (int, error) {
	aggRaw, ok := data["Aggregate"]
	if !ok {
		return 0, fmt.Errorf("aggregate response missing Aggregate key")
	}
	aggMap, ok := aggRaw.(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("unexpected Aggregate payload shape")
	}
	groups, ok := aggMap[class].([]interface{})
	if !ok || len(groups) == 0 {
		// A class with no objects can come back with no group at all.
		return 0, nil
	}
	group, ok := groups[0].(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("unexpected aggregate group shape for %s", class)
	}
	meta, ok := group["meta"].(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("aggregate group for %s missing meta", class)
	}
	switch count := meta["count"].(type) {
	case float64:
		return int(count), nil
	case json.Number:
		n, err := count.Int64()
		return int(n), err
	default:
		return 0, fmt.Errorf("aggregate count for %s has unexpected type %T", class, meta["count"])
	}
}
