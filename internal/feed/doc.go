// Package feed delivers incoming archives to the watch daemon.
//
// A Listener blocks until its context ends, handing each archive to the
// supplied Handler once the file is fully on local disk. Telegram long-polls
// a bot for document messages and downloads matching attachments into the
// download directory. Folder polls an inbox directory and claims files whose
// size has stopped changing.
package feed
