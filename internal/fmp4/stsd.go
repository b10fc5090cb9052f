package fmp4

// avc1Entry builds the avc1 sample entry (86 bytes before avcC) followed by
// the avcC box wrapping the verbatim AVC decoder configuration record.
func avc1Entry(p HeaderParams) []byte {
	var b []byte
	b = appendZeros(b, 6) // reserved
	b = appendU16(b, 1)   // data_reference_index
	b = appendZeros(b, 16) // pre_defined/reserved (version/revision/max_packet_size/temporal_quality/spatial_quality)
	b = appendU16(b, uint16(p.Width))
	b = appendU16(b, uint16(p.Height))
	b = appendU32(b, 0x00480000) // horizresolution, 72 dpi
	b = appendU32(b, 0x00480000) // vertresolution, 72 dpi
	b = appendU32(b, 0)          // reserved (data_size)
	b = appendU16(b, 1)          // frame_count
	b = appendZeros(b, 32)       // compressorname
	b = appendU16(b, 24)         // depth
	b = appendI16(b, -1)         // pre_defined / color_table_id
	b = append(b, avcC(p.AVCConfig)...)
	return box("avc1", b)
}

// avcC stores the AVC decoder configuration record verbatim as the body of
// the avcC box.
func avcC(config []byte) []byte {
	return box("avcC", config)
}

// mp4aEntry builds the mp4a sample entry (36 bytes) followed by the esds
// descriptor tree conveying the AAC ASC.
func mp4aEntry(p HeaderParams) []byte {
	b := audioSampleEntryCommon(p.AudioChannelCount, p.AudioSampleRate)
	b = append(b, esds(p.AACConfigBytes)...)
	return box("mp4a", b)
}

// mp3Entry builds the .mp3 sample entry: identical shape to mp4a through
// sample_rate, with no descriptor trailer (36 bytes total).
func mp3Entry(p HeaderParams) []byte {
	b := audioSampleEntryCommon(p.AudioChannelCount, p.AudioSampleRate)
	return box(".mp3", b)
}

func audioSampleEntryCommon(channelCount, sampleRate int) []byte {
	var b []byte
	b = appendZeros(b, 6) // reserved
	b = appendU16(b, 1)   // data_reference_index
	b = appendZeros(b, 8) // reserved (2x u32)
	b = appendU16(b, uint16(channelCount))
	b = appendU16(b, 16) // samplesize
	b = appendU16(b, 0)  // pre_defined
	b = append(b, 0, 0)  // reserved
	b = appendU32(b, uint32(sampleRate)<<16)
	return b
}

// descriptor wraps an MPEG-4 ES descriptor tag/body with a single-byte
// short-form length field.
func descriptor(tag byte, body []byte) []byte {
	out := make([]byte, 0, 2+len(body))
	out = append(out, tag, byte(len(body)))
	out = append(out, body...)
	return out
}

// esds builds the esds FullBox: ES_Descriptor(0x03) wrapping
// DecoderConfigDescriptor(0x04, objectTypeIndication=0x40, streamType=0x15)
// + DecSpecificInfo(0x05, body=ASC bytes) + SLConfigDescriptor, the fixed
// 3-byte [0x06,0x01,0x02].
func esds(aacConfigBytes []byte) []byte {
	decSpecificInfo := descriptor(0x05, aacConfigBytes)

	var dcdBody []byte
	dcdBody = append(dcdBody, 0x40)       // objectTypeIndication: MPEG-4 audio
	dcdBody = append(dcdBody, 0x15)       // streamType=0x15(audio)<<2 | upStream(0) | reserved(1)
	dcdBody = appendU24(dcdBody, 0)       // bufferSizeDB
	dcdBody = appendU32(dcdBody, 0)       // maxBitrate
	dcdBody = appendU32(dcdBody, 0)       // avgBitrate
	dcdBody = append(dcdBody, decSpecificInfo...)
	decoderConfigDescriptor := descriptor(0x04, dcdBody)

	slConfigDescriptor := []byte{0x06, 0x01, 0x02}

	var esBody []byte
	esBody = appendU16(esBody, 0) // ES_ID
	esBody = append(esBody, 0)    // flags: no stream dependence, no URL, no OCR stream
	esBody = append(esBody, decoderConfigDescriptor...)
	esBody = append(esBody, slConfigDescriptor...)
	esDescriptor := descriptor(0x03, esBody)

	return fullBox("esds", 0, 0, esDescriptor)
}
