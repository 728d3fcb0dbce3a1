// Package pubflow provides a reusable library for managing publishable
// content with pluggable repository, media storage and mail backends.
//
// It exposes a single Service interface that orchestrates saving and
// querying content entities, body markup processing, the publication
// workflow with moderation, URL alias lifecycle, and sitemap/RSS
// generation. Implementations of repositories (memory, Postgres) and media
// stores (filesystem, S3) are provided under subpackages.
//
// Body Markup
//
// Entity bodies are stored in a normalized form where every referenced
// image is an [img:N] placeholder and every supported video link is a
// [vid:N] placeholder, both 1-based indexes into the entity's attachment
// lists. The codec localizes inline media on save and expands placeholders
// back into presentational markup on render, so stored bodies never carry
// raw third-party URLs.
package pubflow
