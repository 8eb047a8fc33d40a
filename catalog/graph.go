package catalog

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jDirectory stores the catalog as (:Hotel)-[:BELONGS_TO]->(:Brand).
type Neo4jDirectory struct {
	driver neo4j.DriverWithContext
}

func NewNeo4jDirectory(driver neo4j.DriverWithContext) *Neo4jDirectory {
	return &Neo4jDirectory{driver: driver}
}

var _ Directory = (*Neo4jDirectory)(nil)

// Seed upserts brands and hotels. Hotels are linked to the brand whose
// name matches Hotel.Brand.
func (d *Neo4jDirectory) Seed(ctx context.Context, brands []Brand, hotels []Hotel) error {
	if d.driver == nil {
		return fmt.Errorf("neo4j driver is nil")
	}

	brandRows := make([]any, 0, len(brands))
	for _, b := range brands {
		brandRows = append(brandRows, map[string]any{
			"key":              BrandKey(b.Key),
			"name":             b.Name,
			"description":      b.Description,
			"positioning":      b.Positioning,
			"properties_count": b.PropertiesCount,
			"target_market":    b.TargetMarket,
		})
	}

	hotelRows := make([]any, 0, len(hotels))
	for _, h := range hotels {
		amenities := make([]any, len(h.Amenities))
		for i, a := range h.Amenities {
			amenities[i] = a
		}
		hotelRows = append(hotelRows, map[string]any{
			"code":      HotelKey(h.Code),
			"name":      h.Name,
			"location":  h.Location,
			"brand":     h.Brand,
			"rooms":     int64(h.Rooms),
			"amenities": amenities,
		})
	}

	session := d.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `
			UNWIND $brands AS row
			MERGE (b:Brand {key: row.key})
			SET b.name = row.name,
			    b.description = row.description,
			    b.positioning = row.positioning,
			    b.properties_count = row.properties_count,
			    b.target_market = row.target_market
		`, map[string]any{"brands": brandRows}); err != nil {
			return nil, fmt.Errorf("upsert brand nodes: %w", err)
		}

		if _, err := tx.Run(ctx, `
			UNWIND $hotels AS row
			MERGE (h:Hotel {code: row.code})
			SET h.name = row.name,
			    h.location = row.location,
			    h.brand = row.brand,
			    h.rooms = row.rooms,
			    h.amenities = row.amenities
			WITH h, row
			OPTIONAL MATCH (h)-[old:BELONGS_TO]->(:Brand)
			DELETE old
			WITH h, row
			MATCH (b:Brand {name: row.brand})
			MERGE (h)-[:BELONGS_TO]->(b)
		`, map[string]any{"hotels": hotelRows}); err != nil {
			return nil, fmt.Errorf("upsert hotel nodes: %w", err)
		}

		return nil, nil
	})
	return err
}

// Purge removes every Brand and Hotel node.
func (d *Neo4jDirectory) Purge(ctx context.Context) error {
	if d.driver == nil {
		return fmt.Errorf("neo4j driver is nil")
	}

	session := d.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	for _, query := range []string{
		"MATCH (h:Hotel) DETACH DELETE h",
		"MATCH (b:Brand) DETACH DELETE b",
	} {
		result, err := session.Run(ctx, query, nil)
		if err != nil {
			return fmt.Errorf("purge catalog: %w", err)
		}
		if _, err := result.Consume(ctx); err != nil {
			return fmt.Errorf("purge catalog: %w", err)
		}
	}
	return nil
}

func (d *Neo4jDirectory) Brand(ctx context.Context, name string) (Brand, error) {
	records, err := d.read(ctx, `
		MATCH (b:Brand {key: $key})
		RETURN b.key AS key, b.name AS name, b.description AS description,
		       b.positioning AS positioning, b.properties_count AS properties_count,
		       b.target_market AS target_market
	`, map[string]any{"key": BrandKey(name)})
	if err != nil {
		return Brand{}, fmt.Errorf("query brand: %w", err)
	}

	if len(records) == 0 {
		keys, keyErr := d.keys(ctx, "MATCH (b:Brand) RETURN b.key AS key ORDER BY key")
		if keyErr != nil {
			return Brand{}, keyErr
		}
		return Brand{}, &NotFoundError{Kind: "brand", Key: name, Available: keys}
	}

	record := records[0]
	return Brand{
		Key:             stringValue(record, "key"),
		Name:            stringValue(record, "name"),
		Description:     stringValue(record, "description"),
		Positioning:     stringValue(record, "positioning"),
		PropertiesCount: stringValue(record, "properties_count"),
		TargetMarket:    stringValue(record, "target_market"),
	}, nil
}

func (d *Neo4jDirectory) Hotel(ctx context.Context, code string) (Hotel, error) {
	records, err := d.read(ctx, `
		MATCH (h:Hotel {code: $code})
		OPTIONAL MATCH (h)-[:BELONGS_TO]->(b:Brand)
		RETURN h.code AS code, h.name AS name, h.location AS location,
		       coalesce(b.name, h.brand) AS brand, h.rooms AS rooms, h.amenities AS amenities
	`, map[string]any{"code": HotelKey(code)})
	if err != nil {
		return Hotel{}, fmt.Errorf("query hotel: %w", err)
	}

	if len(records) == 0 {
		keys, keyErr := d.keys(ctx, "MATCH (h:Hotel) RETURN h.code AS key ORDER BY key")
		if keyErr != nil {
			return Hotel{}, keyErr
		}
		return Hotel{}, &NotFoundError{Kind: "hotel", Key: code, Available: keys}
	}

	record := records[0]
	rooms, _ := record.Get("rooms")
	amenities, _ := record.Get("amenities")
	return Hotel{
		Code:      stringValue(record, "code"),
		Name:      stringValue(record, "name"),
		Location:  stringValue(record, "location"),
		Brand:     stringValue(record, "brand"),
		Rooms:     toInt(rooms),
		Amenities: convertStringSlice(amenities),
	}, nil
}

func (d *Neo4jDirectory) read(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	if d.driver == nil {
		return nil, fmt.Errorf("neo4j driver is nil")
	}

	session := d.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return result.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	records, _ := out.([]*neo4j.Record)
	return records, nil
}

func (d *Neo4jDirectory) keys(ctx context.Context, cypher string) ([]string, error) {
	records, err := d.read(ctx, cypher, nil)
	if err != nil {
		return nil, fmt.Errorf("list catalog keys: %w", err)
	}
	keys := make([]string, 0, len(records))
	for _, record := range records {
		if key := stringValue(record, "key"); key != "" {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func stringValue(record *neo4j.Record, key string) string {
	value, _ := record.Get(key)
	s, _ := value.(string)
	return s
}

func convertStringSlice(value any) []string {
	raw, ok := value.([]any)
	if !ok {
		if v, ok := value.([]string); ok {
			return v
		}
		return nil
	}

	result := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && s != "" {
			result = append(result, s)
		}
	}
	return result
}

func toInt(value any) int {
	switch v := value.(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
