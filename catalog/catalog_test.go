package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticDirectoryBrandLookupIgnoresCaseAndSpaces(t *testing.T) {
	dir := NewDefaultDirectory()

	for _, name := range []string{"aston", "ASTON", "  Aston ", "FAVE Hotel", "favehotel"} {
		brand, err := dir.Brand(context.Background(), name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, brand.Name)
	}

	brand, err := dir.Brand(context.Background(), "Huxley")
	require.NoError(t, err)
	assert.Equal(t, "Luxury lifestyle", brand.Positioning)
	assert.Equal(t, "15+", brand.PropertiesCount)
}

func TestStaticDirectoryBrandNotFound(t *testing.T) {
	dir := NewDefaultDirectory()

	_, err := dir.Brand(context.Background(), "Ritz")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.EqualError(t, err, "Brand 'Ritz' not found. Available: aston, huxley, alana, kamuela, favehotel")
}

func TestStaticDirectoryHotelLookup(t *testing.T) {
	dir := NewDefaultDirectory()

	hotel, err := dir.Hotel(context.Background(), "ASTON_BALI")
	require.NoError(t, err)
	assert.Equal(t, "ASTON Denpasar Hotel & Convention Center", hotel.Name)
	assert.Equal(t, 217, hotel.Rooms)
	assert.Contains(t, hotel.Amenities, "Spa")
}

func TestStaticDirectoryHotelNotFound(t *testing.T) {
	dir := NewDefaultDirectory()

	_, err := dir.Hotel(context.Background(), "fave_bandung")
	var notFound *NotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "hotel", notFound.Kind)
	assert.Equal(t, []string{"aston_jakarta", "aston_bali", "huxley_jakarta", "alana_jakarta"}, notFound.Available)
	assert.Contains(t, err.Error(), "Hotel code 'fave_bandung' not found. Available: ")
}

func TestStaticDirectoryDuplicateKeysKeepFirstPosition(t *testing.T) {
	dir := NewStaticDirectory(
		[]Brand{{Key: "aston", Name: "old"}, {Key: "huxley"}, {Key: "ASTON", Name: "new"}},
		nil,
	)

	brands := dir.Brands()
	require.Len(t, brands, 2)
	assert.Equal(t, "new", brands[0].Name)
	assert.Empty(t, dir.Hotels())
}

func TestDefaultHotelsReferenceKnownBrands(t *testing.T) {
	dir := NewDefaultDirectory()
	for _, hotel := range dir.Hotels() {
		_, err := dir.Brand(context.Background(), hotel.Brand)
		assert.NoError(t, err, hotel.Code)
	}
}

func TestNeo4jDirectoryRequiresDriver(t *testing.T) {
	dir := NewNeo4jDirectory(nil)

	_, err := dir.Brand(context.Background(), "aston")
	require.Error(t, err)
	_, err = dir.Hotel(context.Background(), "aston_bali")
	require.Error(t, err)
	require.Error(t, dir.Seed(context.Background(), DefaultBrands(), DefaultHotels()))
	require.Error(t, dir.Purge(context.Background()))
}

func TestRecordConversions(t *testing.T) {
	assert.Equal(t, []string{"Spa", "Bar"}, convertStringSlice([]any{"Spa", "", 3, "Bar"}))
	assert.Equal(t, []string{"Pool"}, convertStringSlice([]string{"Pool"}))
	assert.Nil(t, convertStringSlice(nil))

	assert.Equal(t, 156, toInt(int64(156)))
	assert.Equal(t, 7, toInt(7.9))
	assert.Equal(t, 0, toInt("12"))
}
