package common

// AuthorizationHeaderName carries the bearer token on inbound requests.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the token inside the Authorization header.
const BearerPrefix = "Bearer "

// SettingsKey is the object key of the album registry inside every user bucket.
const SettingsKey = "settings.json"

// ThumbnailsDir is the per-album sub-prefix holding thumbnails.
const ThumbnailsDir = "thumbnails"

// BlankSuffix marks placeholder objects that keep an empty prefix listed.
const BlankSuffix = ".blank"
