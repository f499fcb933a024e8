// Command stlpipe extracts STL archives, sorts images and model files into a
// project folder, packs the models into a single zip, and publishes it to
// Google Drive.
//
// The process subcommand handles a folder of archives in one batch. The watch
// subcommand runs as a single-instance daemon fed by a Telegram bot or an
// inbox folder.
package main
