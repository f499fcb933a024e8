// Package sorter turns an extracted archive into an output bundle: a project
// folder holding an Images directory of prefixed preview images and a single
// zip of the model files.
//
// Each extracted entry lands in exactly one bucket. Entries the classifier
// does not recognize are ignored, recognized entries that match the
// blacklist or a size rule are filtered, and the rest become images or
// models. Images and the model archive are staged beside their final
// location and swapped in only once complete, so a failed or cancelled run
// never leaves a partial archive behind and a repeated run replaces the
// previous output.
package sorter
