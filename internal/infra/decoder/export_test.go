package decoder

var MP3Channels = mp3Channels
