// Package assistant answers questions about the sermon archive.
//
// Ask derives the response cache key first and returns a live cached answer
// when one exists. Otherwise it picks candidate videos (the caller's list,
// videos citing passages named in the question, videos tagged with themes
// the question mentions, then recent sermons), ranks their segments against
// the question, and asks the LLM router for a grounded answer. Successful
// answers are written back to the cache. When every backend fails or
// returns nothing usable, FallbackAnswer lists the most relevant sermons
// instead, and that answer is not cached.
package assistant
